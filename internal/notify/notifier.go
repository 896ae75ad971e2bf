// Package notify delivers receipts and debt reminders to clients.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/logger"
)

// State describes the delivery channel as last observed.
type State string

const (
	StateUnknown      State = "unknown"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateDisabled     State = "disabled"
)

// Notifier sends a text message to a contact address.
type Notifier interface {
	Send(ctx context.Context, to, message string) error
	State() State
}

// Webhook posts {"to", "message"} as JSON to a gateway URL.
type Webhook struct {
	url         string
	countryCode string
	client      *http.Client

	mu    sync.RWMutex
	state State
}

func NewWebhook(url string, timeout time.Duration, countryCode string) *Webhook {
	return &Webhook{
		url:         url,
		countryCode: countryCode,
		client:      &http.Client{Timeout: timeout},
		state:       StateUnknown,
	}
}

type webhookPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (w *Webhook) Send(ctx context.Context, to, message string) error {
	addr := FormatAddress(to, w.countryCode)
	if addr == "" {
		return fmt.Errorf("%w: empty address", domain.ErrDeliveryFailed)
	}

	body, err := json.Marshal(webhookPayload{To: addr, Message: message})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		w.setState(StateDisconnected)
	} else {
		w.setState(StateConnected)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: gateway returned %d", domain.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

func (w *Webhook) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Webhook) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// LogNotifier only logs messages. It is used when no gateway is configured.
type LogNotifier struct {
	CountryCode string
}

func (n LogNotifier) Send(_ context.Context, to, message string) error {
	logger.Log.Info("notification not delivered, no gateway configured",
		logger.String("to", FormatAddress(to, n.CountryCode)),
		logger.Int("length", len(message)),
	)
	return nil
}

func (LogNotifier) State() State {
	return StateDisabled
}

// FormatAddress keeps only the digits of raw, drops leading zeros and
// prefixes countryCode when it is not already there.
func FormatAddress(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, countryCode) {
		return digits
	}
	return countryCode + digits
}
