package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/neuraxis/ctreport/internal/model"
)

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full result in Markdown format.
func (w *MarkdownWriter) Write(result *model.PipelineResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeDiagnosis(md, result.Diagnosis)
	w.writeReport(md, result.Report)
	w.writeExclusions(md, result.Failures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.PipelineResult) {
	md.H1("Brain CT Analysis Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Status", w.statusText(result)},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Completed", result.CompletedAt.Format("2006-01-02 15:04:05 MST")},
			{"Instances Collected", strconv.Itoa(result.InstancesCollected)},
			{"Images Analyzed", strconv.Itoa(result.InstancesAnalyzed)},
			{"Excluded Images", strconv.Itoa(len(result.Failures))},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on the run outcome.
func (w *MarkdownWriter) statusText(result *model.PipelineResult) string {
	switch result.Status {
	case model.StatusFullSuccess:
		return "✅ Complete"
	case model.StatusPartialSuccess:
		return "⚠️ Complete with exclusions"
	default:
		return "❌ Failed"
	}
}

// writeDiagnosis writes the aggregated model assessment.
func (w *MarkdownWriter) writeDiagnosis(md *markdown.Markdown, diag *model.Diagnosis) {
	if diag == nil {
		return
	}

	md.H2("Diagnosis")
	md.PlainText("")

	labels := make([]string, 0, len(diag.ConfidenceScores))
	for label := range diag.ConfidenceScores {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, []string{label, fmt.Sprintf("%.2f", diag.ConfidenceScores[label])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Label", "Mean Confidence"},
		Rows:   rows,
	})
	md.PlainText("")

	if diag.Abnormal() {
		md.Cautionf(
			"Abnormality detected (peak probability %.2f across %d images). This is a screening aid, not a diagnosis.",
			diag.Findings.MaxProbability,
			diag.Findings.ImagesAnalyzed,
		)
	} else {
		md.Notef(
			"No abnormality detected across %d images.",
			diag.Findings.ImagesAnalyzed,
		)
	}
	md.PlainText("")
}

// writeReport writes the four clinical report sections.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.ClinicalReport) {
	if report == nil {
		return
	}

	md.H2("Clinical Report")
	md.PlainText("")

	sections := []struct {
		title string
		body  string
	}{
		{"Clinical History", report.ClinicalHistory},
		{"Findings", report.Findings},
		{"Impression", report.Impression},
		{"Recommendations", report.Recommendations},
	}
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		md.H3(s.title)
		md.PlainText(s.body)
		md.PlainText("")
	}
}

// writeExclusions writes the table of images dropped during the run.
func (w *MarkdownWriter) writeExclusions(md *markdown.Markdown, failures []model.PipelineFailure) {
	if len(failures) == 0 {
		return
	}

	md.H2("Excluded Images")
	md.PlainText("")

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{"`" + f.Source + "`", string(f.Stage), f.Reason})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Stage", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("Generated by ctreport")
}
