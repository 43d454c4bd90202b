// Package modelclient calls the dialogue model provider over its
// chat-completion HTTP contract. Single-shot, non-streaming; a failed or
// non-success call aborts the whole turn upstream.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the grounding prompt plus conversation turns and returns the
// model's raw reply text.
func (c *Client) Complete(ctx context.Context, system string, turns []petshop.ConversationTurn) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("model provider url not configured")
	}

	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	for _, turn := range turns {
		role := "user"
		if turn.Role == petshop.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}

	raw, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model call failed: status %d body=%q", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("model response decode failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("model response has no choices")
	}
	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("model response is empty")
	}
	return reply, nil
}
