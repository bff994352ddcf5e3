// Package reconcile merges inbound contact payloads into one canonical
// Contact per person, with a primary advertiser and secondary links.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"newbusiness/metrics"
	"newbusiness/models"
	"newbusiness/resolver"
	"newbusiness/store"
	"newbusiness/utils"
)

var (
	ErrMissingEmail = errors.New("contact has no email")
	ErrInvalidEmail = errors.New("contact email is malformed")
)

// Config wires the engine. SystemUserID owns every generated row.
type Config struct {
	Resolver      resolver.Resolver
	SystemUserID  uint
	EmailPolicies map[models.Source]EmailPolicy
}

// DefaultEmailPolicies treats Agency CRM as the owner of contact emails.
func DefaultEmailPolicies() map[models.Source]EmailPolicy {
	return map[models.Source]EmailPolicy{
		models.SourceAgencyCRM: EmailOverwrite,
		models.SourceTVPlanner: EmailKeep,
	}
}

type Engine struct {
	db  *gorm.DB
	cfg Config
}

func NewEngine(db *gorm.DB, cfg Config) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if cfg.SystemUserID == 0 {
		return nil, fmt.Errorf("SystemUserID is required")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.NewSubstringResolver()
	}
	if cfg.EmailPolicies == nil {
		cfg.EmailPolicies = DefaultEmailPolicies()
	}
	return &Engine{db: db, cfg: cfg}, nil
}

// Reconcile applies one payload atomically.
func (e *Engine) Reconcile(ctx context.Context, p ContactPayload, source models.Source) (*Outcome, error) {
	var out *Outcome
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = e.ReconcileTx(ctx, tx, p, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReconcileTx applies one payload inside the caller's transaction.
func (e *Engine) ReconcileTx(ctx context.Context, tx *gorm.DB, p ContactPayload, source models.Source) (*Outcome, error) {
	p.normalize()

	contact, match, err := e.findExisting(tx, p)
	if err != nil {
		return nil, err
	}

	var out *Outcome
	if contact == nil {
		out, err = e.create(ctx, tx, p, source)
	} else {
		out, err = e.update(ctx, tx, contact, match, p, source)
	}
	if err != nil {
		return nil, err
	}

	metrics.ReconcileOutcomesTotal.WithLabelValues(string(source), string(out.Match), string(out.Action)).Inc()
	return out, nil
}

// findExisting applies the match precedence: source id, email, then full name.
func (e *Engine) findExisting(tx *gorm.DB, p ContactPayload) (*models.Contact, Match, error) {
	if p.SourceID != nil {
		c, err := firstContact(tx.Where("agency_crm_id = ?", *p.SourceID))
		if err != nil || c != nil {
			return c, MatchSourceID, err
		}
	}

	if p.Email != "" {
		c, err := firstContact(tx.Where("email = ?", p.Email))
		if err != nil {
			return nil, MatchNone, err
		}
		if c != nil {
			if p.SourceID != nil {
				c.AgencyCRMID = utils.Pointer(*p.SourceID)
			}
			return c, MatchEmail, nil
		}
	}

	if p.FirstName != "" && p.LastName != "" {
		c, err := firstContact(tx.Where("first_name = ? AND last_name = ?", p.FirstName, p.LastName))
		if err != nil {
			return nil, MatchNone, err
		}
		if c != nil {
			if p.SourceID != nil {
				c.AgencyCRMID = utils.Pointer(*p.SourceID)
			}
			utils.LogEvent("contact_matched_by_name", map[string]interface{}{
				"contact_id": c.ID,
				"old_email":  c.Email,
				"new_email":  p.Email,
			})
			return c, MatchName, nil
		}
	}

	return nil, MatchNone, nil
}

func (e *Engine) create(ctx context.Context, tx *gorm.DB, p ContactPayload, source models.Source) (*Outcome, error) {
	if p.Email == "" {
		return &Outcome{Action: ActionSkipped, Match: MatchNone, Reason: ErrMissingEmail.Error()}, nil
	}
	if err := checkmail.ValidateFormat(p.Email); err != nil {
		return &Outcome{Action: ActionSkipped, Match: MatchNone, Reason: ErrInvalidEmail.Error()}, nil
	}

	primary, secondary, err := e.resolveBrands(ctx, tx, p.Brands)
	if err != nil {
		return nil, err
	}

	contact := &models.Contact{
		AgencyCRMID: p.SourceID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		AddedByID:   e.cfg.SystemUserID,
	}
	if primary != nil {
		contact.AdvertiserID = utils.Pointer(primary.ID)
	}
	if p.Phone != nil {
		contact.Phone = *p.Phone
	}
	if p.LinkedInURL != nil {
		contact.LinkedInURL = *p.LinkedInURL
	}

	if err := tx.Omit(clause.Associations).Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	if err := store.ReplaceLinks(tx, contact, secondary); err != nil {
		return nil, err
	}

	if primary != nil {
		if err := store.LogActivity(tx, &models.Activity{
			AdvertiserID: primary.ID,
			UserID:       e.cfg.SystemUserID,
			ContactID:    utils.Pointer(contact.ID),
			Description:  fmt.Sprintf("Contact synced from %s: %s", source.Label(), contact.FullName()),
			Outcome:      fmt.Sprintf("New contact added from %s sync", source.Label()),
		}); err != nil {
			return nil, err
		}
	}

	return &Outcome{Action: ActionCreated, Match: MatchNone, Contact: contact}, nil
}

func (e *Engine) update(ctx context.Context, tx *gorm.DB, contact *models.Contact, match Match, p ContactPayload, source models.Source) (*Outcome, error) {
	before := *contact
	oldEmail := contact.Email

	if p.FirstName != "" {
		contact.FirstName = p.FirstName
	}
	if p.LastName != "" {
		contact.LastName = p.LastName
	}
	if p.Phone != nil {
		contact.Phone = *p.Phone
	}
	if p.LinkedInURL != nil {
		contact.LinkedInURL = *p.LinkedInURL
	}
	e.applyEmail(contact, p.Email, source)

	primary, secondary, err := e.resolveBrands(ctx, tx, p.Brands)
	if err != nil {
		return nil, err
	}
	if primary != nil {
		contact.AdvertiserID = utils.Pointer(primary.ID)
	} else {
		contact.AdvertiserID = nil
	}

	if err := tx.Omit(clause.Associations).Save(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if err := store.ReplaceLinks(tx, contact, secondary); err != nil {
		return nil, err
	}

	if primary != nil && contactChanged(&before, contact) {
		outcome := "Contact details refreshed"
		if oldEmail != contact.Email {
			outcome = utils.Truncate(fmt.Sprintf("Email changed: %s -> %s", oldEmail, contact.Email), 200)
		}
		if err := store.LogActivity(tx, &models.Activity{
			AdvertiserID: primary.ID,
			UserID:       e.cfg.SystemUserID,
			ContactID:    utils.Pointer(contact.ID),
			Description:  fmt.Sprintf("Contact updated from %s: %s", source.Label(), contact.FullName()),
			Outcome:      outcome,
		}); err != nil {
			return nil, err
		}
	}

	return &Outcome{Action: ActionUpdated, Match: match, Contact: contact}, nil
}

// applyEmail follows the source's email policy. Malformed emails never
// replace a stored one.
func (e *Engine) applyEmail(contact *models.Contact, email string, source models.Source) {
	if email == "" || email == contact.Email {
		return
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		utils.LogEvent("contact_email_rejected", map[string]interface{}{
			"contact_id": contact.ID,
			"email":      email,
			"source":     source,
		})
		return
	}
	if e.cfg.EmailPolicies[source] == EmailKeep && contact.Email != "" {
		return
	}
	contact.Email = email
}

// resolveBrands returns the primary advertiser for the first brand and the
// ids of every other brand that resolves.
func (e *Engine) resolveBrands(ctx context.Context, tx *gorm.DB, brands []BrandRef) (*models.Advertiser, []uint, error) {
	if len(brands) == 0 {
		return nil, nil, nil
	}

	primary, err := e.cfg.Resolver.Resolve(ctx, tx, brands[0].Name)
	if err != nil {
		return nil, nil, err
	}

	var secondary []uint
	for _, brand := range brands[1:] {
		adv, err := e.cfg.Resolver.Resolve(ctx, tx, brand.Name)
		if err != nil {
			return nil, nil, err
		}
		if adv != nil {
			secondary = append(secondary, adv.ID)
		}
	}
	return primary, secondary, nil
}

func contactChanged(a, b *models.Contact) bool {
	return a.FirstName != b.FirstName ||
		a.LastName != b.LastName ||
		a.Email != b.Email ||
		a.Phone != b.Phone ||
		a.LinkedInURL != b.LinkedInURL ||
		!sameID(a.AdvertiserID, b.AdvertiserID) ||
		!sameInt(a.AgencyCRMID, b.AgencyCRMID)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func firstContact(q *gorm.DB) (*models.Contact, error) {
	var c models.Contact
	err := q.Order("id ASC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contact lookup failed: %w", err)
	}
	return &c, nil
}
