// Package wecom delivers notifications to a WeCom group robot webhook.
package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/metrics"
)

const (
	errcodeOK             = 0
	errcodeRateLimited    = 429
	errcodeInvalidWebhook = 40037

	rateLimitBackoff = 30 * time.Second
	minSendInterval  = time.Second
	requestTimeout   = 10 * time.Second
	breakerFailures  = 3
	breakerCooldown  = time.Minute
)

// RetryDelays are the waits between the attempts of one chunk
var RetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

var (
	// ErrNoWebhook is returned when no webhook is configured
	ErrNoWebhook = errors.New("wecom webhook not configured")
	// ErrInvalidWebhook is returned for errcode 40037 and is not retried
	ErrInvalidWebhook = errors.New("wecom webhook is invalid")
	// ErrRateLimited is returned for errcode 429
	ErrRateLimited = errors.New("wecom rate limit exceeded")
)

type textMessage struct {
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
}

type textContent struct {
	Content       string   `json:"content"`
	MentionedList []string `json:"mentioned_list,omitempty"`
}

type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Client sends text notifications with pacing, retries and a circuit breaker
type Client struct {
	webhook     string
	environment string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	metrics     *metrics.Metrics
	now         domain.Clock
	sleep       func(ctx context.Context, d time.Duration) error
	log         zerolog.Logger
}

// NewClient creates a notifier for webhook. m may be nil.
func NewClient(webhook, environment string, m *metrics.Metrics, log zerolog.Logger) *Client {
	logger := log.With().Str("component", "wecom").Logger()
	return &Client{
		webhook:     webhook,
		environment: environment,
		httpClient:  &http.Client{Timeout: requestTimeout},
		limiter:     rate.NewLimiter(rate.Every(minSendInterval), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "wecom",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Notifier circuit breaker state changed")
			},
		}),
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
		log:     logger,
	}
}

// Enabled reports whether a webhook is configured
func (c *Client) Enabled() bool {
	return c.webhook != ""
}

// Notify formats message for category and delivers it, page by page when it
// is too long. It reports whether every page was delivered.
func (c *Client) Notify(ctx context.Context, message string, category Category) bool {
	if !c.Enabled() {
		c.log.Error().Err(ErrNoWebhook).Str("category", string(category)).Msg("Cannot send notification")
		c.metrics.NotificationSent("skipped")
		return false
	}

	formatted := Format(message, category, c.environment, c.now().In(domain.Beijing))
	chunks := Split(formatted)

	delivered := true
	for i, chunk := range chunks {
		if len(chunks) > 1 {
			chunk = PageHeader(i+1, len(chunks)) + chunk
		}
		if err := c.deliver(ctx, chunk); err != nil {
			c.log.Error().Err(err).Int("chunk", i+1).Int("chunks", len(chunks)).Msg("Failed to deliver notification chunk")
			delivered = false
			if errors.Is(err, ErrInvalidWebhook) || errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
				break
			}
		}
	}

	if delivered {
		c.metrics.NotificationSent("success")
	} else {
		c.metrics.NotificationSent("failure")
	}
	return delivered
}

// NotifyAll sends each message as its own notification with a page header
func (c *Client) NotifyAll(ctx context.Context, messages []string, category Category) bool {
	if len(messages) == 0 {
		c.log.Warn().Msg("No messages to send")
		return false
	}

	all := true
	for i, m := range messages {
		if !c.Notify(ctx, PageHeader(i+1, len(messages))+m, category) {
			all = false
		}
	}
	return all
}

// deliver sends one chunk with retries
func (c *Client) deliver(ctx context.Context, content string) error {
	var err error
	for attempt := 0; attempt < len(RetryDelays); attempt++ {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.send(ctx, content)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidWebhook) || errors.Is(err, gobreaker.ErrOpenState) {
			return err
		}

		if errors.Is(err, ErrRateLimited) {
			c.log.Warn().Msg("Notifier rate limited, backing off")
			if serr := c.sleep(ctx, rateLimitBackoff); serr != nil {
				return serr
			}
		}
		if attempt < len(RetryDelays)-1 {
			c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", RetryDelays[attempt]).Msg("Notification failed, retrying")
			if serr := c.sleep(ctx, RetryDelays[attempt]); serr != nil {
				return serr
			}
		}
	}
	return err
}

func (c *Client) send(ctx context.Context, content string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(textMessage{
		MsgType: "text",
		Text:    textContent{Content: content, MentionedList: []string{"@all"}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var result apiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	switch result.ErrCode {
	case errcodeOK:
		c.log.Debug().Int("length", len(content)).Msg("Notification delivered")
		return nil
	case errcodeRateLimited:
		return ErrRateLimited
	case errcodeInvalidWebhook:
		return fmt.Errorf("%w: %s", ErrInvalidWebhook, result.ErrMsg)
	default:
		return fmt.Errorf("wecom error %d: %s", result.ErrCode, result.ErrMsg)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
