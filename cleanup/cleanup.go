// Package cleanup merges advertisers that differ only by a company suffix
// or a trailing brand name into one record.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/utils"
)

// CompanySuffixes are stripped before grouping, in this order.
var CompanySuffixes = []string{", UAB", " UAB", " SIA", " AB", " OU"}

var errDryRun = errors.New("dry run")

// Merge is one group folded into its keeper.
type Merge struct {
	Key      string   `json:"key"`
	KeeperID uint     `json:"keeper_id"`
	Keeper   string   `json:"keeper"`
	Removed  []string `json:"removed"`
}

// Result counts what a cleanup did, or would do in a dry run.
type Result struct {
	DryRun            bool    `json:"dry_run"`
	Merges            []Merge `json:"merges"`
	Removed           int     `json:"advertisers_removed"`
	ContactsUpdated   int64   `json:"contacts_updated"`
	LinksUpdated      int64   `json:"links_updated"`
	ActivitiesUpdated int64   `json:"activities_updated"`
	SpendingMoved     int64   `json:"spending_moved"`
	SpendingDropped   int64   `json:"spending_dropped"`
}

type Cleaner struct {
	db *gorm.DB
}

func NewCleaner(db *gorm.DB) *Cleaner {
	return &Cleaner{db: db}
}

// GroupKey returns the lowercased first word of the name without suffixes.
func GroupKey(name string) string {
	clean := name
	for _, suffix := range CompanySuffixes {
		clean = strings.ReplaceAll(clean, suffix, "")
	}
	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func hasCompanySuffix(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range CompanySuffixes {
		if strings.Contains(upper, suffix) {
			return true
		}
	}
	return false
}

// Run merges every group of more than one advertiser. In a dry run all
// changes are rolled back and the counts describe what would happen.
func (c *Cleaner) Run(ctx context.Context, dryRun bool) (*Result, error) {
	result := &Result{DryRun: dryRun, Merges: []Merge{}}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var advertisers []models.Advertiser
		if err := tx.Order("id ASC").Find(&advertisers).Error; err != nil {
			return err
		}

		groups := map[string][]models.Advertiser{}
		var keys []string
		for _, adv := range advertisers {
			key := GroupKey(adv.Name)
			if key == "" {
				continue
			}
			if _, ok := groups[key]; !ok {
				keys = append(keys, key)
			}
			groups[key] = append(groups[key], adv)
		}

		for _, key := range keys {
			group := groups[key]
			if len(group) < 2 {
				continue
			}
			sort.SliceStable(group, func(i, j int) bool {
				return hasCompanySuffix(group[i].Name) && !hasCompanySuffix(group[j].Name)
			})

			keeper := group[0]
			merge := Merge{Key: key, KeeperID: keeper.ID, Keeper: keeper.Name}
			for _, dup := range group[1:] {
				if err := c.fold(tx, result, keeper.ID, dup.ID); err != nil {
					return fmt.Errorf("failed to merge %q into %q: %w", dup.Name, keeper.Name, err)
				}
				merge.Removed = append(merge.Removed, dup.Name)
				result.Removed++
			}
			result.Merges = append(result.Merges, merge)
		}

		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		utils.LogError("advertiser_cleanup", err, map[string]interface{}{"dry_run": dryRun})
		return nil, err
	}

	utils.LogEvent("advertiser_cleanup", map[string]interface{}{
		"dry_run":             dryRun,
		"advertisers_removed": result.Removed,
		"contacts_updated":    result.ContactsUpdated,
		"activities_updated":  result.ActivitiesUpdated,
	})
	return result, nil
}

// fold repoints every reference of dupID to keeperID and deletes dupID.
func (c *Cleaner) fold(tx *gorm.DB, result *Result, keeperID, dupID uint) error {
	res := tx.Model(&models.Contact{}).Where("advertiser_id = ?", dupID).Update("advertiser_id", keeperID)
	if res.Error != nil {
		return res.Error
	}
	result.ContactsUpdated += res.RowsAffected

	var links []models.ContactAdvertiserLink
	if err := tx.Where("advertiser_id = ?", dupID).Find(&links).Error; err != nil {
		return err
	}
	for _, link := range links {
		var redundant int64
		if err := tx.Model(&models.ContactAdvertiserLink{}).
			Where("contact_id = ? AND advertiser_id = ?", link.ContactID, keeperID).
			Count(&redundant).Error; err != nil {
			return err
		}
		if redundant == 0 {
			if err := tx.Model(&models.Contact{}).
				Where("id = ? AND advertiser_id = ?", link.ContactID, keeperID).
				Count(&redundant).Error; err != nil {
				return err
			}
		}
		if redundant > 0 {
			if err := tx.Delete(&link).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Model(&link).Update("advertiser_id", keeperID).Error; err != nil {
			return err
		}
		result.LinksUpdated++
	}

	// a contact whose primary became the keeper must not also link to it
	if err := tx.Where("advertiser_id = ? AND contact_id IN (?)", keeperID,
		tx.Model(&models.Contact{}).Select("id").Where("advertiser_id = ?", keeperID),
	).Delete(&models.ContactAdvertiserLink{}).Error; err != nil {
		return err
	}

	res = tx.Model(&models.Activity{}).Where("advertiser_id = ?", dupID).Update("advertiser_id", keeperID)
	if res.Error != nil {
		return res.Error
	}
	result.ActivitiesUpdated += res.RowsAffected

	for _, model := range []interface{}{&models.LeadStatusHistory{}, &models.Attachment{}} {
		if err := tx.Model(model).Where("advertiser_id = ?", dupID).Update("advertiser_id", keeperID).Error; err != nil {
			return err
		}
	}

	var rows []models.SpendingData
	if err := tx.Unscoped().Where("advertiser_id = ?", dupID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		var taken int64
		if err := tx.Unscoped().Model(&models.SpendingData{}).
			Where("advertiser_id = ? AND year = ?", keeperID, row.Year).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			if err := tx.Unscoped().Delete(&row).Error; err != nil {
				return err
			}
			result.SpendingDropped++
			continue
		}
		if err := tx.Unscoped().Model(&row).Update("advertiser_id", keeperID).Error; err != nil {
			return err
		}
		result.SpendingMoved++
	}

	return tx.Unscoped().Delete(&models.Advertiser{}, dupID).Error
}
