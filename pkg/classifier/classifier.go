package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultThreshold = 0.7
	maxLabelLength   = 32
	labelDelimiter   = ":"
)

// ErrClassificationDegraded marks a classifier failure that was downgraded to low confidence.
var ErrClassificationDegraded = errors.New("classification degraded")

// Score is one ranked label returned by the classification service.
type Score struct {
	Label string
	Score float64
}

// Scorer is the external zero-shot classification service.
type Scorer interface {
	Score(ctx context.Context, text string, candidateLabels []string) ([]Score, error)
}

// Result carries a label and confidence, both set or both nil.
// Both nil means "route to escalation, reason=low_confidence".
type Result struct {
	Label      *string
	Confidence *float64
	// Degraded is set when the service call itself failed.
	Degraded bool
}

func (r Result) Confident() bool {
	return r.Label != nil && r.Confidence != nil
}

type Config struct {
	Threshold float64
	Timeout   time.Duration
	Labels    []Label
}

// Classifier applies the confidence threshold and label normalization on top of a Scorer.
// Safe for concurrent use.
type Classifier struct {
	scorer     Scorer
	threshold  float64
	timeout    time.Duration
	candidates []string
	logger     logger.ILogger
	metrics    *metrics.Metrics
}

func New(scorer Scorer, cfg Config, log logger.ILogger, m *metrics.Metrics) *Classifier {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = DefaultLabels
	}
	return &Classifier{
		scorer:     scorer,
		threshold:  cfg.Threshold,
		timeout:    cfg.Timeout,
		candidates: candidates(cfg.Labels),
		logger:     log,
		metrics:    m,
	}
}

// Classify never fails: service errors come back as a degraded, label-less result.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	ctx, span := otel.Tracer("support-chatbot-be/classifier").Start(ctx, "classifier.Classify")
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	scores, err := c.scorer.Score(callCtx, text, c.candidates)
	if err == nil && len(scores) == 0 {
		err = fmt.Errorf("empty classification response")
	}
	if err != nil {
		return c.degrade(span, start, err)
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	if !validConfidence(best.Score) {
		return c.degrade(span, start, fmt.Errorf("confidence %v outside [0,1] for %q", best.Score, best.Label))
	}
	c.metrics.ClassifierCall(start, false)

	span.SetAttributes(
		attribute.String("classifier.raw_label", best.Label),
		attribute.Float64("classifier.confidence", best.Score),
	)

	return Normalize(best.Label, best.Score, c.threshold)
}

func (c *Classifier) degrade(span trace.Span, start time.Time, cause error) Result {
	err := fmt.Errorf("%w: %v", ErrClassificationDegraded, cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, "degraded")
	c.metrics.ClassifierCall(start, true)
	c.logger.Warn("CLASSIFIER", "Classifier unavailable, treating as low confidence", map[string]interface{}{
		"error": err.Error(),
	})
	return Result{Degraded: true}
}

func validConfidence(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Normalize applies the threshold and label normalization to a raw classifier answer.
// A confidence outside [0,1] is not a usable answer and comes back degraded.
func Normalize(rawLabel string, confidence, threshold float64) Result {
	if !validConfidence(confidence) {
		return Result{Degraded: true}
	}
	if confidence < threshold {
		return Result{}
	}
	label := NormalizeLabel(rawLabel)
	if label == "" {
		return Result{}
	}
	return Result{Label: &label, Confidence: &confidence}
}

// NormalizeLabel keeps the text before the first delimiter, trimmed and capped to 32 characters.
func NormalizeLabel(raw string) string {
	short, _, _ := strings.Cut(raw, labelDelimiter)
	short = strings.TrimSpace(short)
	if utf8.RuneCountInString(short) <= maxLabelLength {
		return short
	}
	return string([]rune(short)[:maxLabelLength])
}
