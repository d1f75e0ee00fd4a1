package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/bdobrica/aether/common/redact"
	"github.com/bdobrica/aether/internal/aether/observability"
)

const defaultModel = "gpt-4o-mini"

// Config is the endpoint configuration. It is always passed explicitly;
// nothing is read from the environment here.
type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1. Trailing
	// slashes are ignored.
	BaseURL string

	// APIKey is sent as "Authorization: Bearer <key>".
	APIKey string

	// Model is the chat model name. Defaults to gpt-4o-mini.
	Model string

	// Timeout bounds a whole round-trip. Zero leaves the transport default
	// in place, so a hung request blocks until the caller's context ends.
	Timeout time.Duration
}

// Client implements Completer and Summarizer against an OpenAI-compatible
// /chat/completions endpoint. It is safe for concurrent use; SetConfig may
// be called while requests are in flight.
type Client struct {
	mu       sync.RWMutex
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: normalise(cfg), logger: logger}
}

// SetRecorder attaches a metrics recorder.
func (c *Client) SetRecorder(r Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// SetConfig replaces the endpoint configuration for subsequent calls.
func (c *Client) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = normalise(cfg)
}

// Config returns the active configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Validate reports ErrConfiguration when the URL or key is missing.
func (c *Client) Validate() error {
	return validate(c.Config())
}

func validate(cfg Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("%w: base URL is empty", ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: API key is empty", ErrConfiguration)
	}
	return nil
}

func normalise(cfg Config) Config {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return cfg
}

// Complete sends a system + user prompt pair and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt})
	return c.Chat(ctx, msgs, temperature)
}

// Chat performs one non-streaming round-trip and returns
// choices[0].message.content. A non-2xx status or a network failure yields
// ErrTransport; a body without the content field yields ErrParse.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	c.mu.RLock()
	cfg, recorder := c.cfg, c.recorder
	c.mu.RUnlock()

	if err := validate(cfg); err != nil {
		return "", err
	}

	purpose := PurposeFromContext(ctx)
	start := time.Now()
	content, err := c.roundTrip(ctx, cfg, messages, temperature)
	elapsed := time.Since(start)

	if recorder != nil {
		recorder.ObserveCompletion(purpose, Outcome(err), elapsed.Seconds())
	}
	logger := observability.WithTrace(ctx, c.logger)
	if err != nil {
		logger.Debug("llm: round-trip failed",
			"purpose", purpose, "model", cfg.Model, "elapsed", elapsed, "err", err)
		return "", err
	}
	logger.Debug("llm: round-trip complete",
		"purpose", purpose, "model", cfg.Model, "elapsed", elapsed,
		"messages", len(messages), "reply_len", len(content))
	return content, nil
}

func (c *Client) roundTrip(ctx context.Context, cfg Config, messages []Message, temperature float64) (string, error) {
	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL+"/"),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMiddleware(labelJSON),
	)

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(cfg.Model),
		Messages:    toOpenAI(messages),
		Temperature: openai.Float(temperature),
	}

	completion, err := client.Chat.Completions.New(ctx, params, option.WithJSONSet("stream", false))
	if err != nil {
		return "", classify(err, cfg.APIKey)
	}

	content := gjson.Get(completion.RawJSON(), "choices.0.message.content")
	if content.Type != gjson.String {
		return "", fmt.Errorf("%w: response has no choices[0].message.content", ErrParse)
	}
	return content.String(), nil
}

// labelJSON marks every 2xx body as JSON. Some compatible endpoints send
// completions as text/plain, which the SDK would otherwise refuse to decode;
// a body that is not JSON still fails to decode and surfaces as ErrParse.
func labelJSON(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	res, err := next(req)
	if err != nil || res == nil || res.StatusCode < 200 || res.StatusCode > 299 {
		return res, err
	}
	if mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type")); mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		res.Header.Set("Content-Type", "application/json")
	}
	return res, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps an SDK error onto the taxonomy. The API key never appears
// in the returned message.
func classify(err error, apiKey string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrTransport, apiErr.StatusCode, redact.String(msg, apiKey))
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTransport, redact.String(err.Error(), apiKey))
	}

	return fmt.Errorf("%w: decode response: %s", ErrParse, redact.String(err.Error(), apiKey))
}

var (
	_ Completer  = (*Client)(nil)
	_ Summarizer = (*Client)(nil)
)
