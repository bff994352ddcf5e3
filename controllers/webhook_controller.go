package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/utils"
	"newbusiness/webhook"
)

type WebhookController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Config *config.Config
}

func NewWebhookController(db *gorm.DB, logger *log.Logger, cfg *config.Config) *WebhookController {
	return &WebhookController{
		DB:     db,
		Logger: logger,
		Config: cfg,
	}
}

type webhookRequest struct {
	URL      string   `json:"url" validate:"required,url,max=500"`
	Events   []string `json:"events" validate:"required,min=1,dive,required"`
	Secret   string   `json:"secret" validate:"omitempty,min=16,max=255"`
	IsActive *bool    `json:"is_active"`
}

// GetWebhooks lists every outbound subscription
func (wc *WebhookController) GetWebhooks(c *fiber.Ctx) error {
	var hooks []models.Webhook
	if err := wc.DB.WithContext(c.UserContext()).Order("id ASC").Find(&hooks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhooks", err)
	}
	return c.JSON(utils.SuccessResponse(hooks))
}

// CreateWebhook adds a subscription. The secret is returned only here.
func (wc *WebhookController) CreateWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	secret := req.Secret
	if secret == "" {
		var err error
		if secret, err = webhook.GenerateSecret(); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate secret", err)
		}
	}

	hook := models.Webhook{
		URL:      strings.TrimSpace(req.URL),
		Events:   req.Events,
		Secret:   secret,
		IsActive: true,
	}
	err := wc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hook).Error; err != nil {
			return err
		}
		// is_active has a database default, so false must be written explicitly
		if req.IsActive != nil && !*req.IsActive {
			hook.IsActive = false
			return tx.Model(&hook).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create webhook", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"webhook": hook,
		"secret":  secret,
	}))
}

// UpdateWebhook changes url, events, secret or active flag
func (wc *WebhookController) UpdateWebhook(c *fiber.Ctx) error {
	var req struct {
		URL      *string   `json:"url" validate:"omitempty,url,max=500"`
		Events   *[]string `json:"events" validate:"omitempty,min=1,dive,required"`
		Secret   *string   `json:"secret" validate:"omitempty,min=16,max=255"`
		IsActive *bool     `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	hook, err := wc.load(c)
	if err != nil {
		return webhookError(c, err)
	}

	updates := map[string]interface{}{}
	if req.URL != nil {
		updates["url"] = strings.TrimSpace(*req.URL)
	}
	if req.Secret != nil {
		updates["secret"] = *req.Secret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	err = wc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if req.Events != nil {
			hook.Events = *req.Events
			if err := tx.Model(hook).Select("events").Updates(hook).Error; err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(hook).Updates(updates).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update webhook", err)
	}

	hook, err = wc.load(c)
	if err != nil {
		return webhookError(c, err)
	}
	return c.JSON(utils.SuccessResponse(hook))
}

// DeleteWebhook removes a subscription and its delivery log
func (wc *WebhookController) DeleteWebhook(c *fiber.Ctx) error {
	hook, err := wc.load(c)
	if err != nil {
		return webhookError(c, err)
	}

	err = wc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("webhook_id = ?", hook.ID).Delete(&models.WebhookLog{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(hook).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete webhook", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": hook.ID}))
}

// GetWebhookLogs returns delivery attempts, newest first
func (wc *WebhookController) GetWebhookLogs(c *fiber.Ctx) error {
	hook, err := wc.load(c)
	if err != nil {
		return webhookError(c, err)
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var logs []models.WebhookLog
	if err := wc.DB.WithContext(c.UserContext()).
		Where("webhook_id = ?", hook.ID).
		Order("triggered_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook logs", err)
	}
	return c.JSON(utils.SuccessResponse(logs))
}

// SetupBidirectional subscribes the Agency CRM webhook URL to contact.updated
func (wc *WebhookController) SetupBidirectional(c *fiber.Ctx) error {
	url := wc.Config.Source(models.SourceAgencyCRM).WebhookURL
	hook, created, err := webhook.SetupBidirectional(c.UserContext(), wc.DB, url)
	if err != nil {
		if errors.Is(err, webhook.ErrNoTargetURL) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Agency CRM webhook URL is not configured", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to set up webhook", err)
	}

	resp := fiber.Map{
		"webhook": hook,
		"created": created,
	}
	status := fiber.StatusOK
	if created {
		// Only a fresh subscription exposes its secret
		resp["secret"] = hook.Secret
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(utils.SuccessResponse(resp))
}

func (wc *WebhookController) load(c *fiber.Ctx) (*models.Webhook, error) {
	var hook models.Webhook
	if err := wc.DB.WithContext(c.UserContext()).First(&hook, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return nil, err
	}
	return &hook, nil
}

func webhookError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Webhook not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook", err)
}
