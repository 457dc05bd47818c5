package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// ResponseCache stores raw classifier responses keyed by request payload
// hash. Because the outbound payload is deterministic for a given
// (article, organization) pair, a cache hit replays the exact earlier answer.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Client implements ports.Classifier against an OpenAI-compatible
// chat-completions API.
type Client struct {
	endpoint      string
	model         string
	apiKey        string
	systemPrompt  string
	maxTokens     int
	temperature   float64
	maxRetries    int
	httpClient    *http.Client
	responseCache ResponseCache
	logger        *slog.Logger
}

var _ ports.Classifier = (*Client)(nil)

// NewClient builds a classifier client from configuration. Cache and logger
// may be nil.
func NewClient(cfg config.LLMConfig, cache ResponseCache, logger *slog.Logger) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		apiKey:        cfg.APIKey,
		systemPrompt:  cfg.SystemPrompt,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxRetries:    maxRetries,
		httpClient:    &http.Client{Timeout: cfg.Timeout()},
		responseCache: cache,
		logger:        logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// BuildPayload produces the outbound request body for one (article,
// organization) pair. The same inputs always yield the same bytes, which is
// what makes response caching and request-level testing possible.
func (c *Client) BuildPayload(article domain.Article, org domain.Organization) ([]byte, error) {
	maxTokens := c.maxTokens
	if org.MaxTokens > 0 {
		maxTokens = org.MaxTokens
	}
	temperature := c.temperature
	if org.Temperature != nil {
		temperature = *org.Temperature
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(c.systemPrompt, org)},
			{Role: "user", Content: userPrompt(org, article)},
		},
		Stream:      false,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal classification payload: %w", err)
	}
	return payload, nil
}

// Classify submits one article with one organization's context and parses the
// reply into the closed category set. Transport-level failures (network,
// timeout, HTTP errors, empty choices) come back as errors; a reply that is
// merely unparseable maps to the sentinel category instead.
func (c *Client) Classify(ctx context.Context, article domain.Article, org domain.Organization) (domain.Result, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Result{}, fmt.Errorf("classifier client misconfigured")
	}

	payload, err := c.BuildPayload(article, org)
	if err != nil {
		return domain.Result{}, err
	}

	cacheKey := payloadKey(payload)
	if c.responseCache != nil {
		if body, ok := c.responseCache.Get(ctx, cacheKey); ok {
			c.debug("classifier cache hit", "article", article.ID, "organization", org.Name)
			return parseResponseBody(body)
		}
	}

	body, err := c.send(ctx, payload)
	if err != nil {
		return domain.Result{}, err
	}

	if c.responseCache != nil {
		c.responseCache.Set(ctx, cacheKey, body)
	}

	return parseResponseBody(body)
}

// send posts the payload, honoring rate limits: a 429 waits for Retry-After
// (or an exponential fallback) and retries up to the bounded attempt count.
func (c *Client) send(ctx context.Context, payload []byte) ([]byte, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("classifier request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
			_ = resp.Body.Close()
			c.debug("classifier rate limited", "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, readErr := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
			readErr = closeErr
		}
		if readErr != nil {
			return nil, fmt.Errorf("read classifier response: %w", readErr)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			preview := strings.TrimSpace(string(body))
			if len(preview) > 512 {
				preview = preview[:512]
			}
			return nil, fmt.Errorf("classifier error %s: %s", resp.Status, preview)
		}

		return body, nil
	}

	return nil, fmt.Errorf("classifier rate limited after %d attempts", c.maxRetries)
}

func parseResponseBody(body []byte) (domain.Result, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Result{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Result{}, fmt.Errorf("classifier response has no choices")
	}

	choice := resp.Choices[0]
	category, explanation, advice := domain.ParseContent(choice.Message.Content)

	return domain.Result{
		Category:    category,
		Explanation: explanation,
		Advice:      advice,
		Reasoning:   choice.Message.ReasoningContent,
		Truncated:   choice.FinishReason == "length",
	}, nil
}

func payloadKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "classify:" + hex.EncodeToString(sum[:])
}

func retryDelay(retryAfter string, attempt int) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(1<<(attempt+1)) * time.Second
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
