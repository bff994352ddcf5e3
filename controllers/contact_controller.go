package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"newbusiness/models"
	"newbusiness/store"
	"newbusiness/utils"
	"newbusiness/webhook"
)

type ContactController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier *webhook.Notifier
}

func NewContactController(db *gorm.DB, logger *log.Logger, notifier *webhook.Notifier) *ContactController {
	return &ContactController{
		DB:       db,
		Logger:   logger,
		Notifier: notifier,
	}
}

// GetContact returns a contact with every advertiser it relates to
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	contact, err := cc.load(c)
	if err != nil {
		return contactError(c, err)
	}

	related, err := store.RelatedAdvertisers(c.UserContext(), cc.DB, contact)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch related advertisers", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"contact":     contact,
		"advertisers": related,
	}))
}

// GetRelatedAdvertisers returns the primary advertiser followed by linked ones
func (cc *ContactController) GetRelatedAdvertisers(c *fiber.Ctx) error {
	contact, err := cc.load(c)
	if err != nil {
		return contactError(c, err)
	}

	related, err := store.RelatedAdvertisers(c.UserContext(), cc.DB, contact)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch related advertisers", err)
	}
	return c.JSON(utils.SuccessResponse(related))
}

type updateContactRequest struct {
	FirstName     *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName      *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email         *string `json:"email" validate:"omitempty,max=200"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	LinkedInURL   *string `json:"linkedin_url" validate:"omitempty,max=500"`
	AdvertiserID  *uint   `json:"advertiser_id"`
	AdvertiserIDs *[]uint `json:"advertiser_ids"` // secondary links, replaced when present
}

// UpdateContact edits a contact and notifies contact.updated subscribers
func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	var req updateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" {
			if err := checkmail.ValidateFormat(email); err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
			}
		}
		req.Email = &email
	}

	contact, err := cc.load(c)
	if err != nil {
		return contactError(c, err)
	}

	err = cc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if req.FirstName != nil {
			contact.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			contact.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.Email != nil {
			contact.Email = *req.Email
		}
		if req.Phone != nil {
			contact.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.LinkedInURL != nil {
			contact.LinkedInURL = strings.TrimSpace(*req.LinkedInURL)
		}
		if req.AdvertiserID != nil {
			if *req.AdvertiserID == 0 {
				contact.AdvertiserID = nil
			} else {
				if err := tx.First(&models.Advertiser{}, *req.AdvertiserID).Error; err != nil {
					return err
				}
				contact.AdvertiserID = req.AdvertiserID
			}
		}

		if err := tx.Omit(clause.Associations).Save(contact).Error; err != nil {
			return err
		}

		if req.AdvertiserIDs != nil {
			var count int64
			if err := tx.Model(&models.Advertiser{}).Where("id IN ?", *req.AdvertiserIDs).Count(&count).Error; err != nil {
				return err
			}
			if int(count) != len(uniqueIDs(*req.AdvertiserIDs)) {
				return gorm.ErrRecordNotFound
			}
			return store.ReplaceLinks(tx, contact, *req.AdvertiserIDs)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown advertiser", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	var deliveries []models.WebhookLog
	if cc.Notifier != nil {
		deliveries, err = cc.Notifier.ContactUpdated(c.UserContext(), contact)
		if err != nil {
			utils.LogError("contact_notification_failed", err, map[string]interface{}{
				"contact_id": contact.ID,
			})
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"contact":    contact,
		"deliveries": len(deliveries),
	}))
}

func uniqueIDs(ids []uint) map[uint]bool {
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen
}

func (cc *ContactController) load(c *fiber.Ctx) (*models.Contact, error) {
	var contact models.Contact
	if err := cc.DB.WithContext(c.UserContext()).First(&contact, utils.ParseUint(c.Params("id"))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &contact, nil
}

func contactError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
}
