// Package resolver matches external company, brand and campaign names to
// stored advertisers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/utils"
)

// Resolver maps an external entity name to an advertiser. A nil advertiser
// with a nil error means no match. Implementations run on the caller's db
// handle so lookups observe the caller's open transaction.
type Resolver interface {
	Resolve(ctx context.Context, db *gorm.DB, name string) (*models.Advertiser, error)
}

// SubstringResolver tries an exact name match, then Unicode case-folded
// containment in either direction. When several advertisers match, the one
// with the lowest id wins; the heuristic is not unique by construction.
type SubstringResolver struct{}

func NewSubstringResolver() *SubstringResolver {
	return &SubstringResolver{}
}

func (SubstringResolver) Resolve(ctx context.Context, db *gorm.DB, name string) (*models.Advertiser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	adv, err := first(db.WithContext(ctx).Where("name = ?", name))
	if err != nil || adv != nil {
		return adv, err
	}

	var candidates []struct {
		ID   uint
		Name string
	}
	if err := db.WithContext(ctx).
		Model(&models.Advertiser{}).
		Select("id", "name").
		Order("id ASC").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("advertiser lookup failed: %w", err)
	}
	for _, cand := range candidates {
		if utils.ContainsFolded(cand.Name, name) {
			return first(db.WithContext(ctx).Where("id = ?", cand.ID))
		}
	}
	return nil, nil
}

// ExactResolver only accepts an exact name match.
type ExactResolver struct{}

func (ExactResolver) Resolve(ctx context.Context, db *gorm.DB, name string) (*models.Advertiser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).Where("name = ?", name))
}

func first(q *gorm.DB) (*models.Advertiser, error) {
	var adv models.Advertiser
	err := q.Order("id ASC").First(&adv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advertiser lookup failed: %w", err)
	}
	return &adv, nil
}
