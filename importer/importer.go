// Package importer loads yearly spending exports and applies the lead-status
// rules that follow every import.
package importer

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/store"
	"newbusiness/utils"
)

// InHouseAgencies are the agencies whose clients are already ours.
var InHouseAgencies = []string{
	"BPN (US) - IPG",
	"Initiate (Open agency) IPG",
	"Media brands digital - IPG",
	"UM (Inspired) IPG",
}

// PublicSectorKeywords mark advertisers that are not a sales market.
var PublicSectorKeywords = []string{
	"ministerija", "ministeri", "ministry",
	"savivaldyb", "municipality",
	"departament", "department",
	"tarnyba", "taryba", "service", "council",
	"agentūra", "agency",
	"fondas", "fund",
	"centras", "center", "centre",
	"inspekcija", "inspection",
	"direkcija", "directorate",
	"komisija", "commission",
	"valstybinė", "valstybinis", "state",
	"nacionalinis", "national",
	"lietuvos respublikos", "republic of lithuania",
	"vyriausybė", "government",
	"seimas", "parliament",
}

// SpendingRow is one advertiser-year of an import.
type SpendingRow struct {
	AdvertiserName string
	Year           int
	TV             float64
	Cinema         float64
	Radio          float64
	OutdoorStatic  float64
	Billboard      float64
	Internet       float64
	Magazines      float64
	Newspapers     float64
	IndoorTV       float64
	GrandTotal     float64
	CurrentAgency  string
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported        int `json:"imported"`
	Advertisers     int `json:"advertisers"`
	Skipped         int `json:"skipped"`
	StatusesUpdated int `json:"statuses_updated"`
}

type Importer struct {
	db           *gorm.DB
	systemUserID uint
}

func NewImporter(db *gorm.DB, systemUserID uint) *Importer {
	return &Importer{db: db, systemUserID: systemUserID}
}

// ImportSpending replaces all spending rows of every advertiser named in
// rows, creating missing advertisers, then runs the lead-status sweep.
func (im *Importer) ImportSpending(ctx context.Context, rows []SpendingRow) (*ImportResult, error) {
	result := &ImportResult{}

	// last row wins for a repeated advertiser-year
	type key struct {
		name string
		year int
	}
	var order []key
	latest := map[key]SpendingRow{}
	var names []string
	seenName := map[string]bool{}
	for _, row := range rows {
		row.AdvertiserName = strings.TrimSpace(row.AdvertiserName)
		if row.AdvertiserName == "" || row.Year <= 0 {
			result.Skipped++
			continue
		}
		k := key{row.AdvertiserName, row.Year}
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = row
		if !seenName[row.AdvertiserName] {
			seenName[row.AdvertiserName] = true
			names = append(names, row.AdvertiserName)
		}
	}

	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		advertisers := map[string]*models.Advertiser{}
		for _, name := range names {
			adv, err := store.FindAdvertiserByName(tx, name)
			if err != nil {
				return err
			}
			if adv == nil {
				adv = &models.Advertiser{Name: name, LeadStatus: models.LeadStatusNonQualified}
				if err := tx.Create(adv).Error; err != nil {
					return fmt.Errorf("failed to create advertiser %q: %w", name, err)
				}
			} else if err := tx.Unscoped().Where("advertiser_id = ?", adv.ID).Delete(&models.SpendingData{}).Error; err != nil {
				return fmt.Errorf("failed to clear spending for %q: %w", name, err)
			}
			advertisers[name] = adv
		}

		for _, k := range order {
			row := latest[k]
			adv := advertisers[k.name]
			if row.CurrentAgency != "" && row.CurrentAgency != adv.CurrentAgency {
				if err := tx.Model(adv).Update("current_agency", row.CurrentAgency).Error; err != nil {
					return err
				}
				adv.CurrentAgency = row.CurrentAgency
			}

			spending := models.SpendingData{
				AdvertiserID:  adv.ID,
				Year:          row.Year,
				TV:            row.TV,
				Cinema:        row.Cinema,
				Radio:         row.Radio,
				OutdoorStatic: row.OutdoorStatic,
				Billboard:     row.Billboard,
				Internet:      row.Internet,
				Magazines:     row.Magazines,
				Newspapers:    row.Newspapers,
				IndoorTV:      row.IndoorTV,
				GrandTotal:    row.GrandTotal,
			}
			if err := tx.Create(&spending).Error; err != nil {
				return fmt.Errorf("failed to import %s %d: %w", k.name, k.year, err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		utils.LogError("spending_import", err, map[string]interface{}{"rows": len(rows)})
		return nil, err
	}
	result.Advertisers = len(names)

	updated, err := im.SweepLeadStatuses(ctx)
	if err != nil {
		return nil, err
	}
	result.StatusesUpdated = updated

	utils.LogEvent("spending_imported", map[string]interface{}{
		"imported":         result.Imported,
		"advertisers":      result.Advertisers,
		"statuses_updated": result.StatusesUpdated,
	})
	return result, nil
}

// SweepLeadStatuses promotes unqualified advertisers of in-house agencies to
// ours and marks unqualified public-sector names as non_market.
func (im *Importer) SweepLeadStatuses(ctx context.Context) (int, error) {
	updated := 0
	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Advertiser
		if err := tx.Where("lead_status = ?", models.LeadStatusNonQualified).Order("id ASC").Find(&candidates).Error; err != nil {
			return err
		}

		for i := range candidates {
			adv := &candidates[i]
			status, reason := classify(adv)
			if status == "" {
				continue
			}
			changed, err := store.ChangeLeadStatus(tx, adv, status, im.systemUserID, reason)
			if err != nil {
				return err
			}
			if changed {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("lead status sweep failed: %w", err)
	}
	return updated, nil
}

func classify(adv *models.Advertiser) (string, string) {
	for _, agency := range InHouseAgencies {
		if adv.CurrentAgency == agency {
			return models.LeadStatusOurs, "In-house agency: " + agency
		}
	}
	name := strings.ToLower(adv.Name)
	for _, kw := range PublicSectorKeywords {
		if strings.Contains(name, kw) {
			return models.LeadStatusNonMarket, "Public sector keyword: " + kw
		}
	}
	return "", ""
}
