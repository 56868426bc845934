package classifier

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	scores []Score
	err    error
	got    []string
	wait   time.Duration
}

func (f *fakeScorer) Score(ctx context.Context, _ string, candidateLabels []string) ([]Score, error) {
	f.got = candidateLabels
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.scores, f.err
}

func newTestClassifier(s Scorer) *Classifier {
	return New(s, Config{Timeout: 50 * time.Millisecond}, logger.NewNopLogger(), metrics.New(prometheus.NewRegistry()))
}

func TestClassify_AboveThreshold(t *testing.T) {
	s := &fakeScorer{scores: []Score{
		{Label: "ChitChat: Greetings, thanks, casual conversation not needing action.", Score: 0.1},
		{Label: "Billing Issue: Charges, invoices, overbilling, refunds, payment failures.", Score: 0.82},
	}}
	res := newTestClassifier(s).Classify(context.Background(), "I was charged twice")

	require.True(t, res.Confident())
	assert.Equal(t, "Billing Issue", *res.Label)
	assert.InDelta(t, 0.82, *res.Confidence, 1e-9)
	assert.False(t, res.Degraded)
	assert.Len(t, s.got, len(DefaultLabels))
	assert.Equal(t, "Billing Issue: Charges, invoices, overbilling, refunds, payment failures.", s.got[0])
}

func TestClassify_BelowThresholdIsNone(t *testing.T) {
	s := &fakeScorer{scores: []Score{{Label: "Cancellation: Cancel service", Score: 0.4}}}
	res := newTestClassifier(s).Classify(context.Background(), "hmm")

	assert.Nil(t, res.Label)
	assert.Nil(t, res.Confidence)
	assert.False(t, res.Degraded)
}

func TestClassify_ThresholdIsInclusive(t *testing.T) {
	s := &fakeScorer{scores: []Score{{Label: "ChitChat: hi", Score: DefaultThreshold}}}
	res := newTestClassifier(s).Classify(context.Background(), "hello")
	require.True(t, res.Confident())
	assert.Equal(t, "ChitChat", *res.Label)
}

func TestClassify_FailureDegrades(t *testing.T) {
	tests := []struct {
		name   string
		scorer *fakeScorer
	}{
		{"error", &fakeScorer{err: errors.New("connection refused")}},
		{"empty", &fakeScorer{}},
		{"timeout", &fakeScorer{wait: time.Second, scores: []Score{{Label: "x", Score: 1}}}},
		{"confidence above one", &fakeScorer{scores: []Score{{Label: "Billing Issue: x", Score: 1.5}}}},
		{"negative confidence", &fakeScorer{scores: []Score{{Label: "Billing Issue: x", Score: -0.2}}}},
		{"NaN confidence", &fakeScorer{scores: []Score{{Label: "Billing Issue: x", Score: math.NaN()}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestClassifier(tt.scorer).Classify(context.Background(), "text")
			assert.True(t, res.Degraded)
			assert.False(t, res.Confident())
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Billing Issue: Charges, invoices", "Billing Issue"},
		{"  Device Configuration  : Router", "Device Configuration"},
		{"NoDelimiter", "NoDelimiter"},
		{strings.Repeat("a", 40), strings.Repeat("a", 32)},
		{strings.Repeat("é", 33) + ": x", strings.Repeat("é", 32)},
		{": only description", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLabel(tt.in), tt.in)
	}
}

func TestNormalize_EmptyLabelIsNone(t *testing.T) {
	res := Normalize(": nothing before", 0.99, DefaultThreshold)
	assert.False(t, res.Confident())
}

func TestNormalize_OutOfRangeConfidenceIsDegraded(t *testing.T) {
	for _, c := range []float64{1.5, -0.1, math.NaN(), math.Inf(1)} {
		res := Normalize("Billing Issue: x", c, DefaultThreshold)
		assert.True(t, res.Degraded, "confidence %v", c)
		assert.Nil(t, res.Label)
		assert.Nil(t, res.Confidence)
	}
	res := Normalize("Billing Issue: x", 1, DefaultThreshold)
	require.True(t, res.Confident())
	assert.False(t, res.Degraded)
}

func TestHTTPClassifier_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sequence":"hi","labels":["ChitChat: hi","Billing Issue: x"],"scores":[0.9,0.1]}`))
	}))
	defer srv.Close()

	scores, err := NewHTTPClassifier(srv.URL, "secret").Score(context.Background(), "hi", []string{"ChitChat: hi", "Billing Issue: x"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "ChitChat: hi", scores[0].Label)
	assert.InDelta(t, 0.9, scores[0].Score, 1e-9)
}

func TestHTTPClassifier_ListShape(t *testing.T) {
	scores, err := decodeScores([]byte(`[{"label":"Cancellation: c","score":0.77}]`))
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "Cancellation: c", scores[0].Label)
}

func TestHTTPClassifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClassifier(srv.URL, "").Score(context.Background(), "hi", []string{"a"})
	assert.ErrorContains(t, err, "status 503")
}
