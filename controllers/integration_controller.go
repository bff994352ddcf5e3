package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/reconcile"
	"newbusiness/syncer"
	"newbusiness/utils"
	"newbusiness/webhook"
)

type IntegrationController struct {
	DB           *gorm.DB
	Logger       *log.Logger
	Config       *config.Config
	Orchestrator *syncer.Orchestrator
}

func NewIntegrationController(db *gorm.DB, logger *log.Logger, cfg *config.Config, orchestrator *syncer.Orchestrator) *IntegrationController {
	return &IntegrationController{
		DB:           db,
		Logger:       logger,
		Config:       cfg,
		Orchestrator: orchestrator,
	}
}

// ReceiveWebhook handles POST /api/integrations/webhook/:source
func (ic *IntegrationController) ReceiveWebhook(c *fiber.Ctx) error {
	source, ok := models.ParseSource(c.Params("source"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown integration"})
	}

	body := c.Body()
	sc := ic.Config.Source(source)
	policy := webhook.InboundPolicy{Secret: sc.WebhookSecret, RequireSignature: sc.RequireSignature}
	if err := policy.Check(body, c.Get(webhook.HeaderSignature)); err != nil {
		var authErr *webhook.AuthError
		if errors.As(err, &authErr) {
			utils.LogEvent("webhook_signature_rejected", map[string]interface{}{
				"source": source,
				"ip":     c.IP(),
			})
			return c.Status(authErr.Status).JSON(fiber.Map{"error": authErr.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON payload"})
	}

	event := strings.TrimSpace(c.Get(webhook.HeaderEvent))
	result, err := ic.Orchestrator.HandleEvent(c.UserContext(), source, event, body)
	if err != nil {
		// A payload that fails validation is skipped, not retried
		if errors.Is(err, utils.ErrValidation) {
			utils.LogEvent("webhook_payload_skipped", map[string]interface{}{
				"source": source,
				"event":  event,
				"reason": err.Error(),
			})
			return c.JSON(fiber.Map{
				"status": "received",
				"action": reconcile.ActionSkipped,
				"reason": err.Error(),
			})
		}
		utils.LogError("webhook_processing_failed", err, map[string]interface{}{
			"source": source,
			"event":  event,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{"status": "received"}
	if result.Action != "" {
		resp["action"] = result.Action
	}
	return c.JSON(resp)
}

type syncRequest struct {
	APIURL string `json:"api_url" validate:"omitempty,url"`
	APIKey string `json:"api_key"`
}

// TriggerSync handles POST /api/integrations/sync/:source
func (ic *IntegrationController) TriggerSync(c *fiber.Ctx) error {
	source, ok := models.ParseSource(c.Params("source"))
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown integration", nil)
	}

	var req syncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if strings.TrimSpace(req.APIKey) == "" && ic.Config.Source(source).APIKey == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "API key required", nil)
	}

	run, err := ic.Orchestrator.Run(c.UserContext(), source, syncer.RunOptions{
		BaseURL: req.APIURL,
		APIKey:  req.APIKey,
		Trigger: syncer.TriggerManual,
	})
	if err != nil {
		if errors.Is(err, syncer.ErrMissingAPIKey) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "API key required", nil)
		}
		ic.Logger.Printf("Sync from %s failed: %v", source.Label(), err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to start sync", err)
	}

	return c.JSON(fiber.Map{
		"success": run.Status != models.SyncFailed,
		"status":  run.Status,
		"message": run.Message,
		"summary": run,
	})
}

// ListSyncRuns returns recent bulk pull summaries, newest first.
func (ic *IntegrationController) ListSyncRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := ic.DB.WithContext(c.UserContext()).Order("started_at DESC").Limit(limit)
	if s := c.Query("source"); s != "" {
		source, ok := models.ParseSource(s)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown integration", nil)
		}
		q = q.Where("source = ?", source)
	}

	var runs []models.SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sync runs", err)
	}
	return c.JSON(utils.SuccessResponse(runs))
}

type syncProgressMessage struct {
	Type     string           `json:"type"` // progress, summary, error
	Progress *syncer.Progress `json:"progress,omitempty"`
	Summary  *models.SyncRun  `json:"summary,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// SyncProgressWS runs a bulk pull requested over the socket and streams
// per-collection progress followed by the summary.
func (ic *IntegrationController) SyncProgressWS(conn *websocket.Conn) {
	defer conn.Close()

	var input struct {
		Source string `json:"source"`
		Action string `json:"action"`
		APIURL string `json:"api_url"`
		APIKey string `json:"api_key"`
	}
	if err := conn.ReadJSON(&input); err != nil {
		ic.Logger.Printf("Error reading JSON: %v", err)
		return
	}

	source, ok := models.ParseSource(input.Source)
	if !ok || input.Action != "sync" {
		_ = conn.WriteJSON(syncProgressMessage{Type: "error", Error: "expected {\"source\": \"agency-crm|tv-planner\", \"action\": \"sync\"}"})
		return
	}

	writeFailed := false
	run, err := ic.Orchestrator.Run(context.Background(), source, syncer.RunOptions{
		BaseURL: input.APIURL,
		APIKey:  input.APIKey,
		Trigger: syncer.TriggerWebsocket,
		Progress: func(p syncer.Progress) {
			if writeFailed {
				return
			}
			if err := conn.WriteJSON(syncProgressMessage{Type: "progress", Progress: &p}); err != nil {
				ic.Logger.Printf("Error writing JSON: %v", err)
				writeFailed = true
			}
		},
	})
	if err != nil {
		_ = conn.WriteJSON(syncProgressMessage{Type: "error", Error: err.Error()})
		return
	}
	if err := conn.WriteJSON(syncProgressMessage{Type: "summary", Summary: run}); err != nil {
		ic.Logger.Printf("Error writing JSON: %v", err)
	}
}
