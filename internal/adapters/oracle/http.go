package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/metrics"
)

// Default HTTP oracle configuration constants.
const (
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
)

// HTTPScorer calls a remote text-completion service, instructing it to return
// a JSON object whose keys match the rubric's dimension and parameter names.
type HTTPScorer struct {
	url         string
	client      *http.Client
	def         rubric.Definition
	maxTokens   int
	temperature float64
}

// HTTPOption applies a configuration option to the HTTPScorer.
type HTTPOption func(*HTTPScorer)

// WithTimeout bounds a single completion call.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPScorer) {
		if timeout > 0 {
			s.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPScorer) {
		if client != nil {
			s.client = client
		}
	}
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(n int) HTTPOption {
	return func(s *HTTPScorer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewHTTPScorer creates a scorer that POSTs to the given completion endpoint.
func NewHTTPScorer(url string, def rubric.Definition, opts ...HTTPOption) *HTTPScorer {
	s := &HTTPScorer{
		url:         url,
		client:      &http.Client{Timeout: defaultTimeout},
		def:         def,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// completionRequest mirrors the completion service's request schema.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// completionResponse mirrors the completion service's response schema.
type completionResponse struct {
	Response string `json:"response"`
}

// Score sends the prompt and parses the completion into raw sub-scores.
// Any transport or shape failure is an error; the caller decides whether to
// substitute the fallback record.
func (s *HTTPScorer) Score(ctx context.Context, req Request) (RawScores, error) {
	start := time.Now()
	metrics.RecordOracleRequest()
	defer func() {
		metrics.RecordOracleLatency(float64(time.Since(start).Milliseconds()))
	}()

	body, err := json.Marshal(completionRequest{
		Prompt:      BuildPrompt(s.def, req),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		metrics.RecordOracleError()
		return RawScores{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		metrics.RecordOracleError()
		return RawScores{}, fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		metrics.RecordOracleError()
		return RawScores{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordOracleError()
		return RawScores{}, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		metrics.RecordOracleError()
		return RawScores{}, fmt.Errorf("%w: decode envelope: %w", ErrBadResponse, err)
	}

	raw, err := parseScores(cr.Response)
	if err != nil {
		metrics.RecordOracleError()
		return RawScores{}, err
	}
	return raw, nil
}

// parseScores extracts the JSON score object from completion text. Models
// often wrap the object in markdown fences or prose; take the outermost
// braces and parse what is between them.
func parseScores(text string) (RawScores, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return RawScores{}, fmt.Errorf("%w: no JSON object in completion", ErrBadResponse)
	}

	var raw RawScores
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		// Some completions return one flat object instead of the nested
		// core/methodology shape; accept that too.
		var flat map[string]int
		if ferr := json.Unmarshal([]byte(cleaned[start:end+1]), &flat); ferr != nil {
			return RawScores{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
		}
		return RawScores{Core: flat, Methodology: flat}, nil
	}
	if len(raw.Core) == 0 && len(raw.Methodology) == 0 {
		var flat map[string]int
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &flat); err == nil && len(flat) > 0 {
			return RawScores{Core: flat, Methodology: flat}, nil
		}
		return RawScores{}, fmt.Errorf("%w: empty score object", ErrBadResponse)
	}
	return raw, nil
}
