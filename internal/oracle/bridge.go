package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sonnylabs/sonny/internal/logging"
)

// Bridge is a Channel backed by a local browser-bridge process. The bridge
// exposes a small HTTP API: POST /v1/sessions opens a conversation on a
// given site, POST /v1/sessions/{id}/ask sends a prompt and returns the
// assistant's reply, either as plain text or as an HTML snapshot of the
// answer node.
type Bridge struct {
	baseURL   string
	site      string
	client    *http.Client
	logger    *logging.Logger
	sessionID string
}

// NewBridge creates a bridge client. timeout bounds each ask round-trip,
// which includes the oracle's own thinking time.
func NewBridge(baseURL, site string, timeout time.Duration, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.New()
	}
	return &Bridge{
		baseURL: baseURL,
		site:    site,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithComponent("oracle"),
	}
}

type openRequest struct {
	Site string `json:"site"`
}

type openResponse struct {
	SessionID string `json:"session_id"`
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Open starts a fresh conversation. It must be called once before Send.
func (b *Bridge) Open(ctx context.Context) error {
	var resp openResponse
	err := b.post(ctx, "/v1/sessions", openRequest{Site: b.site}, &resp)
	if err != nil {
		return err
	}
	if resp.SessionID == "" {
		return fmt.Errorf("%w: bridge returned no session id", ErrUnavailable)
	}
	b.sessionID = resp.SessionID
	b.logger.Debug("session opened", map[string]interface{}{"session": resp.SessionID})
	return nil
}

// Send submits a prompt on the open conversation and returns the reply
// text. HTML replies are reduced to text with code blocks preserved.
func (b *Bridge) Send(ctx context.Context, prompt string) (string, error) {
	if b.sessionID == "" {
		return "", fmt.Errorf("%w: no open session", ErrUnavailable)
	}

	var resp askResponse
	err := b.post(ctx, "/v1/sessions/"+b.sessionID+"/ask", askRequest{Prompt: prompt}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Text != "" {
		return resp.Text, nil
	}
	if resp.HTML != "" {
		return ExtractText(resp.HTML), nil
	}
	return "", fmt.Errorf("%w: empty reply", ErrUnavailable)
}

func (b *Bridge) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: bridge returned %d", ErrTimeout, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: bridge returned %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode reply: %v", ErrUnavailable, err)
	}
	return nil
}

func isClientTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
