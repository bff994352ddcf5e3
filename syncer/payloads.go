package syncer

import (
	"encoding/json"
	"strings"

	"newbusiness/reconcile"
)

// Company is an Agency CRM company.
type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name" validate:"required"`
}

// Brand is an Agency CRM brand. Its advertiser is named "{company} - {brand}".
type Brand struct {
	ID          int    `json:"id"`
	Name        string `json:"name" validate:"required"`
	CompanyName string `json:"company_name"`
}

func (b Brand) AdvertiserName() string {
	company := strings.TrimSpace(b.CompanyName)
	if company == "" {
		company = "Unknown"
	}
	return company + " - " + strings.TrimSpace(b.Name)
}

// Invoice is an Agency CRM invoice.
type Invoice struct {
	ID          int         `json:"id"`
	BrandName   string      `json:"brand_name"`
	InvoiceDate string      `json:"invoice_date"`
	TotalAmount json.Number `json:"total_amount"`
}

// StatusUpdate is an Agency CRM status update.
type StatusUpdate struct {
	ID         int    `json:"id"`
	BrandName  string `json:"brand_name"`
	UpdateText string `json:"update_text"`
	CreatedBy  string `json:"created_by"`
}

// Campaign is a TV Planner campaign. Campaign names start with the
// advertiser name followed by a dash.
type Campaign struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	TotalSpending float64 `json:"total_spending"`
}

// Wave is a TV Planner wave of a campaign.
type Wave struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	CampaignName string `json:"campaign_name"`
}

// TVContact is a TV Planner contact with a single full-name field.
type TVContact struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone"`
	Company string  `json:"company"`
}

// AdvertiserPrefix returns the part of a campaign name before the first dash.
func AdvertiserPrefix(campaignName string) string {
	prefix, _, _ := strings.Cut(campaignName, "-")
	return strings.TrimSpace(prefix)
}

// contactPayload maps a TV Planner contact onto the reconciliation payload.
// TV Planner ids are not Agency CRM ids, so SourceID stays nil.
func (c TVContact) contactPayload(company string) reconcile.ContactPayload {
	first, last := reconcile.SplitName(c.Name)
	p := reconcile.ContactPayload{
		FirstName: first,
		LastName:  last,
		Email:     c.Email,
		Phone:     c.Phone,
	}
	if company != "" {
		p.Brands = []reconcile.BrandRef{{Name: company}}
	}
	return p
}
