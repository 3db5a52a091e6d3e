package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

type WebhookMessage struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	Fields      []Field   `json:"fields,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Client struct {
	webhookURL string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

func (c *Client) SendMessage(ctx context.Context, msg WebhookMessage) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	return nil
}

// SendLogMessage posts one embed for a log line. Fields are sorted by name.
func (c *Client) SendLogMessage(level, message string, fields map[string]interface{}) error {
	embed := Embed{
		Title:       fmt.Sprintf("%s %s", getIconForLevel(level), level),
		Description: message,
		Color:       getColorForLevel(level),
		Timestamp:   c.now().UTC(),
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		embed.Fields = append(embed.Fields, Field{
			Name:   key,
			Value:  truncate(fmt.Sprintf("%v", fields[key]), maxFieldValue),
			Inline: true,
		})
	}

	return c.SendMessage(context.Background(), WebhookMessage{Embeds: []Embed{embed}})
}

// Discord rejects embeds whose field values exceed this many characters.
const maxFieldValue = 1024

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func getIconForLevel(level string) string {
	switch level {
	case "ERROR", "FATAL":
		return "🚨"
	case "WARN":
		return "⚠️"
	default:
		return "✅"
	}
}

func getColorForLevel(level string) int {
	switch level {
	case "ERROR":
		return 0xFF0000 // Red
	case "FATAL":
		return 0x8B0000 // Dark Red
	case "WARN":
		return 0xFFA500 // Orange
	case "INFO":
		return 0x2E8B57 // Green
	default:
		return 0x808080 // Gray
	}
}
