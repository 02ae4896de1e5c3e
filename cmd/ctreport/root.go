// Package main provides the entry point for the ctreport CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ctreport.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctreport",
		Short: "Brain CT analysis and clinical report generation",
		Long: `ctreport turns a brain CT series into a structured clinical report.

It accepts DICOM files or archives of them, screens each image with an
abnormality-detection model, aggregates the per-image scores into a
series-level diagnosis, and synthesizes a clinical report through a local
language model. Images that cannot be decoded are excluded and reported;
the remaining series is still analyzed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
