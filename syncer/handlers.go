package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/reconcile"
	"newbusiness/store"
	"newbusiness/utils"
)

// Advertiser defaults for records created by a sync.
const (
	AgencyOurs            = "Our Agency"
	AgencyTVPlannerClient = "TV Planner Client"
	AgencyPotentialClient = "Potential Client"
	DefaultTVCompany      = "TV Planner Contact"
)

func (o *Orchestrator) syncCompany(ctx context.Context, tx *gorm.DB, c Company) (reconcile.Action, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := utils.ValidateStruct(c); err != nil {
		return reconcile.ActionSkipped, err
	}
	description := fmt.Sprintf("Company synced from Agency CRM (ID: %d)", c.ID)
	return o.upsertOurs(tx, c.Name, description, "Company synced from Agency CRM")
}

func (o *Orchestrator) syncBrand(ctx context.Context, tx *gorm.DB, b Brand) (reconcile.Action, error) {
	b.Name = strings.TrimSpace(b.Name)
	if err := utils.ValidateStruct(b); err != nil {
		return reconcile.ActionSkipped, err
	}
	description := fmt.Sprintf("Brand synced from Agency CRM (Brand ID: %d)", b.ID)
	return o.upsertOurs(tx, b.AdvertiserName(), description, "Brand synced from Agency CRM")
}

// upsertOurs finds or creates the advertiser by exact name and marks it as
// one of our clients.
func (o *Orchestrator) upsertOurs(tx *gorm.DB, name, description, reason string) (reconcile.Action, error) {
	adv, err := store.FindAdvertiserByName(tx, name)
	if err != nil {
		return "", err
	}

	action := reconcile.ActionUpdated
	if adv == nil {
		adv = &models.Advertiser{
			Name:          name,
			CurrentAgency: AgencyOurs,
			LeadStatus:    models.LeadStatusOurs,
		}
		if err := tx.Create(adv).Error; err != nil {
			return "", fmt.Errorf("failed to create advertiser %q: %w", name, err)
		}
		action = reconcile.ActionCreated
	} else if _, err := store.ChangeLeadStatus(tx, adv, models.LeadStatusOurs, o.cfg.SystemUserID, reason); err != nil {
		return "", err
	}

	if err := o.noteOnce(tx, adv.ID, description, "Data synchronized", false); err != nil {
		return "", err
	}
	return action, nil
}

func (o *Orchestrator) syncAgencyContact(ctx context.Context, tx *gorm.DB, p reconcile.ContactPayload) (reconcile.Action, error) {
	out, err := o.engine.ReconcileTx(ctx, tx, p, models.SourceAgencyCRM)
	if err != nil {
		return "", err
	}
	return out.Action, nil
}

const invoiceOutcome = "Invoice from Agency CRM"

func (o *Orchestrator) syncInvoice(ctx context.Context, tx *gorm.DB, inv Invoice) (reconcile.Action, error) {
	adv, err := o.cfg.Resolver.Resolve(ctx, tx, inv.BrandName)
	if err != nil || adv == nil {
		return reconcile.ActionSkipped, err
	}

	amount := inv.TotalAmount.String()
	if amount == "" {
		amount = "0"
	}
	date := strings.TrimSpace(inv.InvoiceDate)
	marker := "Invoice: " + date
	description := fmt.Sprintf("%s - Amount: %s EUR", marker, amount)

	// A dated invoice is recorded once per date. Without a date the marker
	// would match every invoice note, so only an identical note counts.
	var exists bool
	if date != "" {
		exists, err = store.HasActivity(tx, adv.ID, marker)
	} else {
		exists, err = store.HasNote(tx, adv.ID, description, invoiceOutcome)
	}
	if err != nil {
		return "", err
	}
	if exists {
		return reconcile.ActionSkipped, nil
	}

	if err := store.LogActivity(tx, &models.Activity{
		AdvertiserID: adv.ID,
		UserID:       o.cfg.SystemUserID,
		Description:  description,
		Outcome:      invoiceOutcome,
	}); err != nil {
		return "", err
	}
	return reconcile.ActionCreated, nil
}

func (o *Orchestrator) syncStatusUpdate(ctx context.Context, tx *gorm.DB, su StatusUpdate) (reconcile.Action, error) {
	if strings.TrimSpace(su.UpdateText) == "" {
		return reconcile.ActionSkipped, nil
	}
	adv, err := o.cfg.Resolver.Resolve(ctx, tx, su.BrandName)
	if err != nil || adv == nil {
		return reconcile.ActionSkipped, err
	}

	description := "Status Update: " + su.UpdateText
	exists, err := store.HasNote(tx, adv.ID, description, "")
	if err != nil {
		return "", err
	}
	if exists {
		return reconcile.ActionSkipped, nil
	}

	author := strings.TrimSpace(su.CreatedBy)
	if author == "" {
		author = "Unknown"
	}
	if err := store.LogActivity(tx, &models.Activity{
		AdvertiserID: adv.ID,
		UserID:       o.cfg.SystemUserID,
		Description:  description,
		Outcome:      "By: " + author,
	}); err != nil {
		return "", err
	}
	return reconcile.ActionCreated, nil
}

func (o *Orchestrator) syncCampaign(ctx context.Context, tx *gorm.DB, c Campaign) (reconcile.Action, error) {
	prefix := AdvertiserPrefix(c.Name)
	if prefix == "" {
		return reconcile.ActionSkipped, nil
	}

	adv, action, err := o.resolveOrCreate(ctx, tx, prefix, AgencyTVPlannerClient, models.LeadStatusWarm)
	if err != nil {
		return "", err
	}

	if err := o.raiseTVSpending(tx, adv.ID, c.TotalSpending); err != nil {
		return "", err
	}

	outcome := "Campaign data synchronized"
	if c.TotalSpending > 0 {
		outcome = fmt.Sprintf("Spending: %s EUR", formatAmount(c.TotalSpending))
	}
	if err := o.noteOnce(tx, adv.ID, "TV Campaign synced: "+c.Name, outcome, true); err != nil {
		return "", err
	}
	return action, nil
}

// raiseTVSpending keeps the larger of the stored and reported TV spend for
// the current year.
func (o *Orchestrator) raiseTVSpending(tx *gorm.DB, advertiserID uint, total float64) error {
	year := o.cfg.Clock().Year()

	var row models.SpendingData
	err := tx.Where("advertiser_id = ? AND year = ?", advertiserID, year).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.SpendingData{AdvertiserID: advertiserID, Year: year}
		if total > 0 {
			row.TV = total
		}
		return tx.Create(&row).Error
	case err != nil:
		return err
	}

	if total > 0 && total > row.TV {
		return tx.Model(&row).Update("tv", total).Error
	}
	return nil
}

func (o *Orchestrator) syncWave(ctx context.Context, tx *gorm.DB, w Wave) (reconcile.Action, error) {
	prefix := AdvertiserPrefix(w.CampaignName)
	if prefix == "" {
		return reconcile.ActionSkipped, nil
	}
	adv, err := o.cfg.Resolver.Resolve(ctx, tx, prefix)
	if err != nil || adv == nil {
		return reconcile.ActionSkipped, err
	}

	description := "TV Wave updated: " + w.Name
	exists, err := store.HasNote(tx, adv.ID, description, "")
	if err != nil || exists {
		return reconcile.ActionSkipped, err
	}
	if err := store.LogActivity(tx, &models.Activity{
		AdvertiserID: adv.ID,
		UserID:       o.cfg.SystemUserID,
		Description:  description,
	}); err != nil {
		return "", err
	}
	return reconcile.ActionUpdated, nil
}

func (o *Orchestrator) syncTVContact(ctx context.Context, tx *gorm.DB, c TVContact) (reconcile.Action, error) {
	if strings.TrimSpace(c.Email) == "" {
		return reconcile.ActionSkipped, nil
	}

	company := strings.TrimSpace(c.Company)
	if company == "" {
		company = DefaultTVCompany
	}
	adv, _, err := o.resolveOrCreate(ctx, tx, company, AgencyPotentialClient, models.LeadStatusCold)
	if err != nil {
		return "", err
	}

	out, err := o.engine.ReconcileTx(ctx, tx, c.contactPayload(adv.Name), models.SourceTVPlanner)
	if err != nil {
		return "", err
	}
	return out.Action, nil
}

// resolveOrCreate resolves name or creates an advertiser with the given
// agency and lead status.
func (o *Orchestrator) resolveOrCreate(ctx context.Context, tx *gorm.DB, name, agency, status string) (*models.Advertiser, reconcile.Action, error) {
	adv, err := o.cfg.Resolver.Resolve(ctx, tx, name)
	if err != nil {
		return nil, "", err
	}
	if adv != nil {
		return adv, reconcile.ActionUpdated, nil
	}

	adv = &models.Advertiser{Name: name, CurrentAgency: agency, LeadStatus: status}
	if err := tx.Create(adv).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create advertiser %q: %w", name, err)
	}
	utils.LogEvent("advertiser_created_from_sync", map[string]interface{}{
		"advertiser_id": adv.ID,
		"name":          name,
		"agency":        agency,
	})
	return adv, reconcile.ActionCreated, nil
}

// noteOnce writes a provenance note unless an identical one exists.
func (o *Orchestrator) noteOnce(tx *gorm.DB, advertiserID uint, description, outcome string, matchOutcome bool) error {
	filter := ""
	if matchOutcome {
		filter = outcome
	}
	exists, err := store.HasNote(tx, advertiserID, description, filter)
	if err != nil || exists {
		return err
	}
	return store.LogActivity(tx, &models.Activity{
		AdvertiserID: advertiserID,
		UserID:       o.cfg.SystemUserID,
		Description:  description,
		Outcome:      outcome,
	})
}

func formatAmount(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
