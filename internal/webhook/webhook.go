package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creativeops/thumbselect/internal/config"
	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/metrics"
	"github.com/creativeops/thumbselect/pkg/models"
)

// Notifier delivers thumbnail events to statically configured HTTP
// endpoints. Delivery is best-effort with bounded retries; the thumbnails
// are already persisted by the time an event fires, so a lost delivery
// costs a stale listing somewhere, not data.
type Notifier struct {
	endpoints []config.WebhookEndpoint
	client    *http.Client
	log       *logging.Logger
	backoff   []time.Duration
	wg        sync.WaitGroup
}

// NewNotifier creates a notifier for the configured endpoints.
func NewNotifier(cfg config.WebhookConfig, log *logging.Logger) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{
		endpoints: cfg.Endpoints,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:     log,
		backoff: []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
	}
}

// Notify fans event out to every configured endpoint in the background.
func (n *Notifier) Notify(ctx context.Context, event models.ThumbnailEvent) {
	if len(n.endpoints) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Errorf("failed to marshal webhook payload: %v", err)
		return
	}

	for _, ep := range n.endpoints {
		n.wg.Add(1)
		go func(ep config.WebhookEndpoint) {
			defer n.wg.Done()
			n.deliver(ep, event.Event, payload)
		}(ep)
	}
}

// Flush blocks until all in-flight deliveries have finished.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ep config.WebhookEndpoint, event string, payload []byte) {
	deliveryID := uuid.New().String()

	for attempt := 0; ; attempt++ {
		if n.attempt(ep, event, deliveryID, payload) {
			metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
			return
		}
		if attempt >= len(n.backoff) {
			break
		}
		time.Sleep(n.backoff[attempt])
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	n.log.Errorf("webhook delivery %s to %s failed after %d attempts", deliveryID, ep.URL, len(n.backoff)+1)
}

func (n *Notifier) attempt(ep config.WebhookEndpoint, event, deliveryID string, payload []byte) bool {
	req, err := http.NewRequest(http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		n.log.Errorf("failed to build webhook request for %s: %v", ep.URL, err)
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "thumbselect-webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	if ep.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Signature(payload, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warnf("webhook delivery %s to %s: %v", deliveryID, ep.URL, err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Signature computes the HMAC-SHA256 signature receivers use to verify a
// payload.
func Signature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
