package controller

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/store"
	"newbusiness/utils"
)

type AdvertiserController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAdvertiserController(db *gorm.DB, logger *log.Logger) *AdvertiserController {
	return &AdvertiserController{
		DB:     db,
		Logger: logger,
	}
}

// GetAdvertisers returns advertisers sorted by last year's net spend
func (ac *AdvertiserController) GetAdvertisers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	filter := store.ListFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Agency: c.Query("agency"),
		Page:   page,
		Limit:  limit,
	}
	if filter.Status != "" && !models.IsValidLeadStatus(filter.Status) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead status", nil)
	}
	if assigned := c.Query("assigned_user_id"); assigned != "" {
		filter.AssignedUserID = utils.Pointer(utils.ParseUint(assigned))
	}

	advertisers, total, err := store.ListAdvertisers(c.UserContext(), ac.DB, filter)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch advertisers", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  advertisers,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

// GetAgencies lists distinct current agencies for the filter dropdown
func (ac *AdvertiserController) GetAgencies(c *fiber.Ctx) error {
	agencies, err := store.Agencies(c.UserContext(), ac.DB)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch agencies", err)
	}
	return c.JSON(utils.SuccessResponse(agencies))
}

// GetAdvertiser returns one advertiser with its latest-year figures
func (ac *AdvertiserController) GetAdvertiser(c *fiber.Ctx) error {
	adv, err := ac.load(c, "SpendingData")
	if err != nil {
		return advertiserError(c, err)
	}

	contacts, err := store.AdvertiserContacts(c.UserContext(), ac.DB, adv.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	spending := spendingRows(adv.SpendingData)
	summary := store.Summarize(*adv)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"advertiser": summary,
		"spending":   spending,
		"contacts":   contacts,
	}))
}

// DeleteAdvertiser hard deletes an advertiser and everything it owns
func (ac *AdvertiserController) DeleteAdvertiser(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	if !user.IsTeamLead() {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only team leads can delete advertisers", nil)
	}

	id := utils.ParseUint(c.Params("id"))
	if err := store.DeleteAdvertiser(c.UserContext(), ac.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Advertiser not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete advertiser", err)
	}

	utils.LogEvent("advertiser_deleted", map[string]interface{}{
		"advertiser_id": id,
		"user_id":       user.ID,
	})
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": id}))
}

// UpdateStatus changes the lead status and records the transition
func (ac *AdvertiserController) UpdateStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Status string `json:"status" validate:"required,leadstatus"`
		Reason string `json:"reason" validate:"omitempty,max=1000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	var changed bool
	err = ac.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = store.ChangeLeadStatus(tx, adv, input.Status, user.ID, input.Reason)
		return err
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update status", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"advertiser": adv,
		"changed":    changed,
	}))
}

// GetStatusHistory returns lead status transitions, newest first
func (ac *AdvertiserController) GetStatusHistory(c *fiber.Ctx) error {
	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	var history []models.LeadStatusHistory
	if err := ac.DB.WithContext(c.UserContext()).
		Where("advertiser_id = ?", adv.ID).
		Order("changed_at DESC, id DESC").
		Find(&history).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch status history", err)
	}
	return c.JSON(utils.SuccessResponse(history))
}

type spendingRow struct {
	models.SpendingData
	CalculatedNetTotal float64 `json:"calculated_net_total"`
}

func spendingRows(rows []models.SpendingData) []spendingRow {
	out := make([]spendingRow, 0, len(rows))
	for i := range rows {
		out = append(out, spendingRow{SpendingData: rows[i], CalculatedNetTotal: rows[i].CalculatedNetTotal()})
	}
	return out
}

// GetSpending lists every year of spending with the derived net total
func (ac *AdvertiserController) GetSpending(c *fiber.Ctx) error {
	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	var rows []models.SpendingData
	if err := ac.DB.WithContext(c.UserContext()).
		Where("advertiser_id = ?", adv.ID).
		Order("year DESC").
		Find(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch spending data", err)
	}
	return c.JSON(utils.SuccessResponse(spendingRows(rows)))
}

// SetNetTotal stores or clears the manual net total of one year
func (ac *AdvertiserController) SetNetTotal(c *fiber.Ctx) error {
	var input struct {
		NetTotal *float64 `json:"net_total" validate:"omitempty,gte=0"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1900 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid year", err)
	}

	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	var row models.SpendingData
	if err := ac.DB.WithContext(c.UserContext()).
		Where("advertiser_id = ? AND year = ?", adv.ID, year).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "No spending data for this year", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch spending data", err)
	}

	if err := ac.DB.WithContext(c.UserContext()).Model(&row).Update("net_total", input.NetTotal).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update net total", err)
	}
	row.NetTotal = input.NetTotal

	return c.JSON(utils.SuccessResponse(spendingRow{SpendingData: row, CalculatedNetTotal: row.CalculatedNetTotal()}))
}

// GetActivities returns the advertiser's CRM log, newest first
func (ac *AdvertiserController) GetActivities(c *fiber.Ctx) error {
	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	var activities []models.Activity
	if err := ac.DB.WithContext(c.UserContext()).
		Where("advertiser_id = ?", adv.ID).
		Order("created_at DESC, id DESC").
		Find(&activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", err)
	}
	return c.JSON(utils.SuccessResponse(activities))
}

// CreateActivity logs a call, email, meeting or note by the current user
func (ac *AdvertiserController) CreateActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ActivityType string `json:"activity_type" validate:"required,oneof=call email meeting note"`
		Description  string `json:"description" validate:"required"`
		Outcome      string `json:"outcome" validate:"omitempty,max=200"`
		ContactID    *uint  `json:"contact_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	adv, err := ac.load(c)
	if err != nil {
		return advertiserError(c, err)
	}

	activity := models.Activity{
		AdvertiserID: adv.ID,
		UserID:       user.ID,
		ContactID:    input.ContactID,
		ActivityType: input.ActivityType,
		Description:  input.Description,
		Outcome:      input.Outcome,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.LogActivity(ac.DB.WithContext(c.UserContext()), &activity); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to log activity", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(activity))
}

// load fetches the :id advertiser.
func (ac *AdvertiserController) load(c *fiber.Ctx, preloads ...string) (*models.Advertiser, error) {
	q := ac.DB.WithContext(c.UserContext())
	for _, p := range preloads {
		q = q.Preload(p)
	}

	var adv models.Advertiser
	if err := q.First(&adv, utils.ParseUint(c.Params("id"))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &adv, nil
}

func advertiserError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Advertiser not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch advertiser", err)
}
