package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"portfolio-chat/internal/domain"
)

const (
	DefaultModel       = "claude-3-5-haiku-latest"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

// KeyFunc returns the API key. It is called at most once per Client.
type KeyFunc func(ctx context.Context) (string, error)

// Client generates replies through the Anthropic Messages API.
type Client struct {
	key         KeyFunc
	model       string
	maxTokens   int
	temperature float32
	baseURL     string
	httpClient  *http.Client

	once   sync.Once
	api    *anthropic.Client
	apiErr error
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = float32(t)
	}
}

// WithBaseURL points the client at a different API root, e.g. a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(key KeyFunc, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, errors.New("anthropic: key func must not be nil")
	}
	c := &Client{
		key:         key,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// sdk builds the SDK client on first use, once the key is known.
func (c *Client) sdk(ctx context.Context) (*anthropic.Client, error) {
	c.once.Do(func() {
		key, err := c.key(ctx)
		if err != nil {
			c.apiErr = fmt.Errorf("anthropic: resolve API key: %w", err)
			return
		}
		var opts []anthropic.ClientOption
		if c.baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.baseURL))
		}
		if c.httpClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(c.httpClient))
		}
		c.api = anthropic.NewClient(key, opts...)
	})
	return c.api, c.apiErr
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateMessages(ctx, []domain.ChatMessage{domain.UserMessage(prompt)})
}

// GenerateMessages sends messages in order. System messages are moved into
// the request's system blocks.
func (c *Client) GenerateMessages(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var system []anthropic.MessageSystemPart
	var msgs []anthropic.Message
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.MessageSystemPart{Type: "text", Text: m.Content})
		case domain.RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		default:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		}
	}
	if len(msgs) == 0 {
		return "", errors.New("anthropic: at least one user or assistant message is required")
	}

	api, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}

	temperature := c.temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	}
	if len(system) > 0 {
		req.MultiSystem = system
	}

	resp, err := api.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("anthropic: no text in response")
	}
	return text, nil
}
