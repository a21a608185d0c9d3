package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	apiVersion       = "2023-06-01"
	maxResponseBytes = 8 << 20
)

var ErrNotConfigured = errors.New("extraction client is not configured")

type Document struct {
	PDF      []byte
	TextHint string
}

type Extractor interface {
	Extract(ctx context.Context, doc Document) (*Result, error)
}

type ClientConfig struct {
	APIURL        string
	APIKey        string
	Model         string
	MaxTokens     int
	MinConfidence float64
	HTTPClient    *http.Client
}

type Client struct {
	cfg ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &Client{cfg: cfg}
}

func (c *Client) Extract(ctx context.Context, doc Document) (*Result, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" || strings.TrimSpace(c.cfg.APIURL) == "" {
		return nil, ErrNotConfigured
	}
	if len(doc.PDF) == 0 {
		return nil, &ParseError{Kind: KindInvalidDocument, Message: "empty document"}
	}

	body, err := json.Marshal(map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{
					"type": "document",
					"source": map[string]any{
						"type":       "base64",
						"media_type": "application/pdf",
						"data":       base64.StdEncoding.EncodeToString(doc.PDF),
					},
				},
				{"type": "text", "text": buildPrompt(doc.TextHint)},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := gjson.GetBytes(payload, "error.message").String()
		if message == "" {
			message = strings.TrimSpace(string(payload[:min(len(payload), 4096)]))
		}
		return nil, fmt.Errorf("extraction request status %d: %s", res.StatusCode, message)
	}

	if !gjson.ValidBytes(payload) {
		return nil, parsingError("extraction response is not JSON", nil)
	}
	if gjson.GetBytes(payload, "stop_reason").String() == "max_tokens" {
		return nil, parsingError("model reply was truncated", nil)
	}
	text := gjson.GetBytes(payload, `content.#(type=="text").text`)
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		return nil, parsingError("model reply has no text content", nil)
	}

	result, err := DecodeResult(text.String())
	if err != nil {
		return nil, err
	}
	if err := result.Check(c.cfg.MinConfidence); err != nil {
		return nil, err
	}
	return result, nil
}
