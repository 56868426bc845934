package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClassifier calls a zero-shot classification endpoint that speaks the
// HuggingFace inference format.
type HTTPClassifier struct {
	url    string
	apiKey string
	client *http.Client
}

var _ Scorer = (*HTTPClassifier)(nil)

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Error    string    `json:"error,omitempty"`
}

// zeroShotItem is the newer router response shape: [{"label": .., "score": ..}].
type zeroShotItem struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func NewHTTPClassifier(url, apiKey string) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		apiKey: apiKey,
		// deadline comes from the caller's context
		client: &http.Client{},
	}
}

func (c *HTTPClassifier) Score(ctx context.Context, text string, candidateLabels []string) ([]Score, error) {
	reqBody := zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels: candidateLabels,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	return decodeScores(bodyBytes)
}

func decodeScores(body []byte) ([]Score, error) {
	var items []zeroShotItem
	if err := json.Unmarshal(body, &items); err == nil {
		out := make([]Score, 0, len(items))
		for _, it := range items {
			out = append(out, Score{Label: it.Label, Score: it.Score})
		}
		return out, nil
	}

	var zs zeroShotResponse
	if err := json.Unmarshal(body, &zs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if zs.Error != "" {
		return nil, fmt.Errorf("classifier api returned error: %s", zs.Error)
	}
	if len(zs.Labels) != len(zs.Scores) {
		return nil, fmt.Errorf("classifier response has %d labels and %d scores", len(zs.Labels), len(zs.Scores))
	}

	out := make([]Score, len(zs.Labels))
	for i := range zs.Labels {
		out[i] = Score{Label: zs.Labels[i], Score: zs.Scores[i]}
	}
	return out, nil
}
