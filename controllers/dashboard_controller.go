package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type DashboardStats struct {
	Advertisers      int64                     `json:"advertisers"`
	ByLeadStatus     map[string]int64          `json:"by_lead_status"`
	Contacts         int64                     `json:"contacts"`
	Activities       int64                     `json:"activities"`
	DeliveriesTotal  int64                     `json:"webhook_deliveries"`
	DeliveriesFailed int64                     `json:"webhook_deliveries_failed"`
	LastSyncBySource map[string]models.SyncRun `json:"last_sync"`
	TimeFrameStart   time.Time                 `json:"time_frame_start"`
}

type statusCount struct {
	LeadStatus string
	Count      int64
}

// GetDashboardStats returns pipeline and integration health for the cards
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	timeFrame := c.Query("time_frame", "week") // hour, day, week, month

	now := time.Now().UTC()
	var startTime time.Time
	switch timeFrame {
	case "hour":
		startTime = now.Add(-1 * time.Hour)
	case "day":
		startTime = now.Add(-24 * time.Hour)
	case "month":
		startTime = now.Add(-30 * 24 * time.Hour)
	default:
		startTime = now.Add(-7 * 24 * time.Hour)
	}

	db := dc.DB.WithContext(c.UserContext())
	stats := DashboardStats{
		ByLeadStatus:     map[string]int64{},
		LastSyncBySource: map[string]models.SyncRun{},
		TimeFrameStart:   startTime,
	}

	var counts []statusCount
	if err := db.Model(&models.Advertiser{}).
		Select("lead_status, COUNT(*) AS count").
		Group("lead_status").
		Scan(&counts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get advertiser stats", err)
	}
	for _, sc := range counts {
		stats.ByLeadStatus[sc.LeadStatus] = sc.Count
		stats.Advertisers += sc.Count
	}

	if err := db.Model(&models.Contact{}).Count(&stats.Contacts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get contact stats", err)
	}
	if err := db.Model(&models.Activity{}).
		Where("created_at >= ?", startTime).
		Count(&stats.Activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get activity stats", err)
	}

	deliveries := db.Model(&models.WebhookLog{}).Where("triggered_at >= ?", startTime)
	if err := deliveries.Session(&gorm.Session{}).Count(&stats.DeliveriesTotal).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get webhook stats", err)
	}
	if err := deliveries.Session(&gorm.Session{}).
		Where("response_status = 0 OR response_status >= 400").
		Count(&stats.DeliveriesFailed).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get webhook stats", err)
	}

	for _, src := range models.Sources {
		var runs []models.SyncRun
		if err := db.Where("source = ?", src).Order("started_at DESC").Limit(1).Find(&runs).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get sync stats", err)
		}
		if len(runs) > 0 {
			stats.LastSyncBySource[string(src)] = runs[0]
		}
	}

	return c.JSON(utils.SuccessResponse(stats))
}
