// Package line wraps the chat platform's messaging and content APIs behind
// the two operations the router needs: replying to a message and fetching
// binary message content.
//
// Replies go through the official SDK client. Content downloads use a plain
// HTTP client instead, because the retry policy here distinguishes transport
// failures (retried) from HTTP error statuses (terminal) and the SDK does
// not expose that distinction.
package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-line-uploader/internal/config"
)

// ErrContentStatus is returned when the content API answers with a non-2xx
// status. Such responses are terminal and never retried.
var ErrContentStatus = errors.New("line: content request rejected")

const (
	contentAttempts = 3
	contentBackoff  = time.Second
)

// replyAPI is the slice of the SDK client used for replies; tests
// substitute a fake.
type replyAPI interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// Client talks to the messaging platform on behalf of the router.
type Client struct {
	api      replyAPI
	http     *http.Client
	endpoint string
	token    string
	log      zerolog.Logger

	// sleep is a seam so retry tests do not wait wall-clock time.
	sleep func(time.Duration)
}

// NewClient builds a Client from channel credentials. The content endpoint
// is configurable so tests can point it at a local server.
func NewClient(cfg config.LINEConfig, log zerolog.Logger) (*Client, error) {
	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
	if err != nil {
		return nil, fmt.Errorf("line: init messaging client: %w", err)
	}
	return &Client{
		api:      api,
		http:     &http.Client{Timeout: 30 * time.Second},
		endpoint: cfg.ContentAPI,
		token:    cfg.ChannelToken,
		log:      log,
		sleep:    time.Sleep,
	}, nil
}

// SendReply sends a single text message bound to replyToken.
func (c *Client) SendReply(ctx context.Context, replyToken, text string) error {
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("line: reply: %w", err)
	}
	return nil
}

// FetchContent downloads the binary payload of a message. Transport
// failures are retried up to three attempts with a fixed pause between
// them; a non-2xx response is terminal because the platform will keep
// answering the same way for the same message id.
func (c *Client) FetchContent(ctx context.Context, messageID string) ([]byte, error) {
	url := c.endpoint + "/v2/bot/message/" + messageID + "/content"

	var lastErr error
	for attempt := 1; attempt <= contentAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(contentBackoff)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("line: build content request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("message_id", messageID).Int("attempt", attempt).
				Msg("content download failed; will retry")
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d for message %s", ErrContentStatus, resp.StatusCode, messageID)
		}
		if readErr != nil {
			lastErr = readErr
			c.log.Warn().Err(readErr).Str("message_id", messageID).Int("attempt", attempt).
				Msg("content body read failed; will retry")
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("line: content download for message %s: %w", messageID, lastErr)
}
