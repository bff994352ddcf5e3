// Package webhook delivers signed outbound notifications and verifies
// inbound ones.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"newbusiness/metrics"
	"newbusiness/models"
	"newbusiness/utils"
)

const (
	// DefaultTimeout bounds a single delivery attempt
	DefaultTimeout = 10 * time.Second

	// MaxLoggedBody is the number of response body characters kept in a log row
	MaxLoggedBody = 1000
)

// Headers set on every delivery
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderDelivery  = "X-Webhook-Delivery"
)

// Config holds dispatcher configuration
type Config struct {
	Timeout time.Duration
	Client  *fasthttp.Client
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

// Dispatcher fans an event out to every active subscriber.
type Dispatcher struct {
	db     *gorm.DB
	client *fasthttp.Client
	cfg    Config
}

func NewDispatcher(db *gorm.DB, cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "newbusiness-webhooks",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		}
	}
	return &Dispatcher{db: db, client: client, cfg: cfg}
}

// Dispatch delivers payload to every active webhook subscribed to event and
// returns the log row written for each attempt. Delivery failures are
// recorded, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload interface{}) []models.WebhookLog {
	body, err := json.Marshal(payload)
	if err != nil {
		utils.LogError("webhook_payload_encode", err, map[string]interface{}{"event": event})
		return nil
	}

	var hooks []models.Webhook
	if err := d.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&hooks).Error; err != nil {
		utils.LogError("webhook_lookup", err, map[string]interface{}{"event": event})
		return nil
	}

	var logs []models.WebhookLog
	for i := range hooks {
		hook := &hooks[i]
		if !hook.Subscribes(event) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		logs = append(logs, d.deliver(ctx, hook, event, body))
	}
	return logs
}

func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, event string, body []byte) models.WebhookLog {
	entry := models.WebhookLog{
		WebhookID:   hook.ID,
		DeliveryID:  uuid.NewString(),
		Event:       event,
		Payload:     string(body),
		TriggeredAt: time.Now().UTC(),
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(hook.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	req.Header.Set(HeaderDelivery, entry.DeliveryID)
	req.SetBody(body)

	start := time.Now()
	err := d.client.DoTimeout(req, resp, d.cfg.Timeout)
	metrics.WebhookDeliveryDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())

	outcome := "delivered"
	if err != nil {
		outcome = "error"
		entry.ResponseStatus = 0
		entry.ResponseBody = utils.Truncate(fmt.Sprintf("Error: %v", err), MaxLoggedBody)
		utils.LogError("webhook_delivery", err, map[string]interface{}{
			"webhook_id":  hook.ID,
			"event":       event,
			"delivery_id": entry.DeliveryID,
		})
	} else {
		entry.ResponseStatus = resp.StatusCode()
		entry.ResponseBody = utils.Truncate(string(resp.Body()), MaxLoggedBody)
		if entry.ResponseStatus < 200 || entry.ResponseStatus >= 300 {
			outcome = "rejected"
		}
		utils.LogEvent("webhook_delivered", map[string]interface{}{
			"webhook_id":  hook.ID,
			"event":       event,
			"delivery_id": entry.DeliveryID,
			"status":      strconv.Itoa(entry.ResponseStatus),
		})
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues(event, outcome).Inc()

	if err := d.db.WithContext(ctx).Create(&entry).Error; err != nil {
		utils.LogError("webhook_log_write", err, map[string]interface{}{
			"webhook_id": hook.ID,
			"event":      event,
		})
	}
	return entry
}
