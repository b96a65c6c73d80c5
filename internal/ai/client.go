// Package ai is the optional LLM vendor client. Everything degrades:
// workers treat an unconfigured or failing client as "use the fallback
// text", never as an error that blocks a send.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/pkg/logger"
)

type Client struct {
	cfg    config.AIConfig
	client *http.Client
	log    logger.Logger
}

func NewClient(cfg config.AIConfig, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("ai: not configured")
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: request: %w", err)
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("ai: vendor error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("ai: empty response")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// Generate produces text for a prompt under a token bound.
func (c *Client) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	return c.complete(ctx, system, prompt, maxTokens)
}

// Rewrite rephrases content text preserving its meaning.
func (c *Client) Rewrite(ctx context.Context, text string) (string, error) {
	return c.complete(ctx,
		"Rewrite the following post in the same language, keeping the meaning and length. Return only the rewritten text.",
		text, 0)
}

// PersonalizeMessage adapts a rendered template to one recipient. The
// caller falls back to the template on any error.
func (c *Client) PersonalizeMessage(ctx context.Context, template, firstName, username string) (string, error) {
	prompt := fmt.Sprintf("Message template:\n%s\n\nRecipient first name: %q, username: %q. "+
		"Lightly adapt the message to the recipient without changing the offer. Return only the message.",
		template, firstName, username)
	return c.complete(ctx, "You adapt outreach messages. Keep them short and natural.", prompt, 0)
}

// CommentFor writes a short comment on a channel post in the voice of
// the given engagement strategy.
func (c *Client) CommentFor(ctx context.Context, postText, strategy string, maxLen int) (string, error) {
	if len(postText) > 400 {
		postText = postText[:400]
	}
	prompt := fmt.Sprintf("Channel post:\n%s\n\nWrite one short comment (max %d characters) in Russian, in the voice of a %q participant. No hashtags, no quotes.",
		postText, maxLen, strategy)

	started := time.Now()
	comment, err := c.complete(ctx, "You write natural Telegram comments.", prompt, 0)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && len([]rune(comment)) > maxLen {
		comment = string([]rune(comment)[:maxLen])
	}
	c.log.Debug("AI comment generated",
		logger.Field{Key: "strategy", Value: strategy},
		logger.Field{Key: "took", Value: time.Since(started).Seconds()})
	return comment, nil
}
