package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"newbusiness/cleanup"
	"newbusiness/importer"
	"newbusiness/utils"
)

// MaxImportSize caps an uploaded spending file
const MaxImportSize = 20 * 1024 * 1024

type ImportController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Importer *importer.Importer
	Cleaner  *cleanup.Cleaner
}

func NewImportController(db *gorm.DB, logger *log.Logger, im *importer.Importer, cleaner *cleanup.Cleaner) *ImportController {
	return &ImportController{
		DB:       db,
		Logger:   logger,
		Importer: im,
		Cleaner:  cleaner,
	}
}

// ImportSpending accepts a multipart "file" with a spending export
func (ic *ImportController) ImportSpending(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File is required", err)
	}
	if fileHeader.Size > MaxImportSize {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File is too large", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open file", err)
	}
	defer file.Close()

	rows, err := importer.ParseSpendingCSV(file)
	if err != nil {
		if errors.Is(err, importer.ErrNoAdvertiserColumn) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Advertiser column not found", err)
		}
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse file", err)
	}

	result, err := ic.Importer.ImportSpending(c.UserContext(), rows)
	if err != nil {
		ic.Logger.Printf("Spending import of %s failed: %v", fileHeader.Filename, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import spending data", err)
	}

	utils.LogEvent("spending_imported", map[string]interface{}{
		"filename":         fileHeader.Filename,
		"imported":         result.Imported,
		"advertisers":      result.Advertisers,
		"statuses_updated": result.StatusesUpdated,
	})
	return c.JSON(utils.SuccessResponse(result))
}

// SweepLeadStatuses reclassifies non-qualified advertisers
func (ic *ImportController) SweepLeadStatuses(c *fiber.Ctx) error {
	updated, err := ic.Importer.SweepLeadStatuses(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead statuses", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"statuses_updated": updated}))
}

// CleanupDuplicates merges advertisers sharing a name key; ?dry_run=true only reports
func (ic *ImportController) CleanupDuplicates(c *fiber.Ctx) error {
	dryRun := c.QueryBool("dry_run", false)
	result, err := ic.Cleaner.Run(c.UserContext(), dryRun)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clean up duplicates", err)
	}
	return c.JSON(utils.SuccessResponse(result))
}
