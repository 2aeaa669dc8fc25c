package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Perplexity defaults.
const (
	DefaultPerplexityURL   = "https://api.perplexity.ai"
	DefaultPerplexityModel = "sonar"
)

// Perplexity is a Provider for the Perplexity chat completions API, which
// searches the web and returns the pages it cited.
type Perplexity struct {
	client  *resty.Client
	baseURL string
	model   string
}

// NewPerplexity creates a provider. Empty baseURL and model use the defaults.
func NewPerplexity(apiKey, baseURL, model string, timeout time.Duration) *Perplexity {
	if baseURL == "" {
		baseURL = DefaultPerplexityURL
	}
	if model == "" {
		model = DefaultPerplexityModel
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Perplexity{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
	}
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model                  string              `json:"model"`
	Messages               []perplexityMessage `json:"messages"`
	DisableSearch          bool                `json:"disable_search,omitempty"`
	ReturnRelatedQuestions bool                `json:"return_related_questions"`
	Stream                 bool                `json:"stream"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"search_results"`
}

// Complete posts the request to /chat/completions.
func (p *Perplexity) Complete(ctx context.Context, req Request) (Response, error) {
	body := perplexityRequest{
		Model:         p.model,
		Messages:      make([]perplexityMessage, 0, len(req.Turns)+1),
		DisableSearch: !req.Grounded,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, perplexityMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.Turns {
		body.Messages = append(body.Messages, perplexityMessage{Role: string(t.Role), Content: t.Content})
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return Response{}, fmt.Errorf("perplexity request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Response{}, fmt.Errorf("perplexity request failed, status: %d", resp.StatusCode())
	}

	var result perplexityResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return Response{}, fmt.Errorf("failed to parse perplexity response: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyCompletion
	}

	out := Response{Text: result.Choices[0].Message.Content}
	if !req.Grounded {
		return out, nil
	}
	if len(result.SearchResults) > 0 {
		for _, r := range result.SearchResults {
			out.Sources = append(out.Sources, Source{Title: r.Title, URI: r.URL})
		}
	} else {
		for _, u := range result.Citations {
			out.Sources = append(out.Sources, Source{URI: u})
		}
	}
	return out, nil
}
