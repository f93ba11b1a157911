package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bookline/internal/domain"

	"github.com/rs/zerolog"
)

// Client talks to the WhatsApp Cloud API for one business phone number.
// It implements domain.MessageSender.
type Client struct {
	apiBase       string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
	logger        *zerolog.Logger
}

func NewClient(apiBase, phoneNumberID, accessToken string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		apiBase:       apiBase,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type markReadRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// errorResponse is the Cloud API failure envelope. Only the stable fields
// are logged; the raw body may carry message content.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Type    string `json:"type"`
		TraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendText delivers one text message. The returned SendResult carries the
// provider message id when the API accepted the send.
func (c *Client) SendText(ctx context.Context, to, body string) (domain.SendResult, error) {
	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	}

	respBody, err := c.post(ctx, payload)
	if err != nil {
		return domain.SendResult{}, err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.SendResult{}, fmt.Errorf("decode send response: %w", err)
	}

	result := domain.SendResult{Success: true}
	if len(resp.Messages) > 0 {
		result.MessageID = resp.Messages[0].ID
	}
	return result, nil
}

// MarkAsRead flips the read receipt for an inbound message. Best effort; a
// failure here never blocks the conversation.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	_, err := c.post(ctx, markReadRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
	return err
}

func (c *Client) post(ctx context.Context, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Int("error_code", apiErr.Error.Code).
			Str("error_type", apiErr.Error.Type).
			Str("trace_id", apiErr.Error.TraceID).
			Msg("whatsapp api error")
		return nil, fmt.Errorf("whatsapp api status %d", resp.StatusCode)
	}
	return respBody, nil
}
