package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// Generator produces a raw completion for a prompt. *Client is the
// production implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer builds the prompt, drives generation with bounded retries,
// and structures the raw completion into a clinical report.
type Synthesizer struct {
	gen     Generator
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithRetries sets the number of generation attempts for transport
// failures.
func WithRetries(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithBackoff sets the delay before the first retry. Each further retry
// doubles it.
func WithBackoff(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithLogger sets the synthesizer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynthesizer creates a synthesizer around gen.
func NewSynthesizer(gen Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		gen:     gen,
		retries: config.DefaultGenerateRetries,
		backoff: time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize generates a structured clinical report for the diagnosis. Any
// failure is returned as a *ReportGenerationError and is fatal for the run.
func (s *Synthesizer) Synthesize(ctx context.Context, diag *model.Diagnosis) (*model.ClinicalReport, error) {
	prompt := BuildPrompt(diag)

	raw, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &ReportGenerationError{Reason: "model returned an empty completion"}
	}

	report := structure(raw)
	if report.Empty() {
		return nil, &ReportGenerationError{Reason: "completion contained no recognizable report sections"}
	}
	report.GeneratedAt = time.Now().UTC()

	s.logger.Info("clinical report synthesized",
		slog.Int("completion_bytes", len(raw)))
	return report, nil
}

func (s *Synthesizer) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	delay := s.backoff
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		raw, err := s.gen.Generate(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var te *transportError
		if !errors.As(err, &te) {
			// Protocol failures will not improve on retry.
			return "", &ReportGenerationError{Reason: "model request failed", Err: err}
		}
		if attempt == s.retries {
			break
		}

		s.logger.Warn("model endpoint unreachable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", &ReportGenerationError{Reason: "generation cancelled", Err: ctx.Err()}
		case <-timer.C:
		}
		delay *= 2
	}
	return "", &ReportGenerationError{
		Reason: fmt.Sprintf("model endpoint unreachable after %d attempts", s.retries),
		Err:    lastErr,
	}
}

// BuildPrompt renders the generation prompt from the diagnosis alone. The
// same diagnosis always yields byte-identical output: confidence scores are
// emitted in sorted label order with fixed precision.
func BuildPrompt(diag *model.Diagnosis) string {
	abnormalities := "None detected"
	if diag.Abnormal() {
		abnormalities = strings.Join(diag.Abnormalities, ", ")
	}

	labels := make([]string, 0, len(diag.ConfidenceScores))
	for label := range diag.ConfidenceScores {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	scores := make([]string, 0, len(labels))
	for _, label := range labels {
		scores = append(scores, fmt.Sprintf("%s: %.2f", label, diag.ConfidenceScores[label]))
	}

	var b strings.Builder
	b.WriteString("Based on the following CT scan analysis, generate a clinical report in the specified format.\n\n")
	b.WriteString("CT Scan Analysis:\n")
	fmt.Fprintf(&b, "- Detected Abnormalities: %s\n", abnormalities)
	fmt.Fprintf(&b, "- Confidence Scores: %s\n", strings.Join(scores, ", "))
	fmt.Fprintf(&b, "- Images Analyzed: %d\n", diag.Findings.ImagesAnalyzed)
	fmt.Fprintf(&b, "- Lead Finding: %s (peak %.2f, mean %.2f)\n",
		diag.Findings.MaxProbabilityLabel,
		diag.Findings.MaxProbability,
		diag.Findings.MeanProbability)
	b.WriteString(`
Please generate a clinical report in the following format:

Clinical History:
[Provide relevant clinical history if available]

Findings:
[Describe the findings from the CT scan analysis]

Impression:
[Provide clinical impression based on the findings]

Recommendations:
[Provide recommendations for follow-up or treatment]

Generate the report now:`)
	return b.String()
}

// sectionHeader matches the four report headers at the start of a line,
// tolerating markdown emphasis around them.
var sectionHeader = regexp.MustCompile(`(?im)^[ \t#*]*(Clinical History|Findings|Impression|Recommendations)[ \t*]*:\**`)

// structure splits the raw completion into report sections. Content runs
// from each header to the next recognized header or end of text. A missing
// section stays empty; the first occurrence wins when a header repeats.
func structure(raw string) *model.ClinicalReport {
	matches := sectionHeader.FindAllStringSubmatchIndex(raw, -1)

	sections := make(map[string]string, 4)
	for i, m := range matches {
		name := strings.ToLower(raw[m[2]:m[3]])
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(raw[m[1]:end])
		if _, seen := sections[name]; !seen {
			sections[name] = content
		}
	}

	return &model.ClinicalReport{
		ClinicalHistory: sections["clinical history"],
		Findings:        sections["findings"],
		Impression:      sections["impression"],
		Recommendations: sections["recommendations"],
	}
}
