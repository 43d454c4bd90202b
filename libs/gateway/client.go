// Package gateway is the outbound client for the WhatsApp messaging gateway.
// The engine only depends on its narrow send contract: instance identifier,
// destination number, plain text body.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText delivers one plain-text message through the tenant's instance.
func (c *Client) SendText(ctx context.Context, instance, number, text string) error {
	if c.baseURL == "" {
		return errors.New("gateway url not configured")
	}
	raw, err := json.Marshal(sendTextRequest{
		Number: number,
		Text:   text,
	})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/message/sendText/" + url.PathEscape(instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway send failed: status %d body=%q", resp.StatusCode, string(body))
	}
	return nil
}
