package reconcile

import (
	"strings"

	"newbusiness/models"
)

// BrandRef is a brand or company association carried by a contact payload.
// The first entry is the primary association.
type BrandRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ContactPayload is an inbound contact in Agency CRM shape. Phone and
// LinkedInURL are pointers so an absent field leaves the stored value alone.
type ContactPayload struct {
	SourceID    *int       `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone"`
	LinkedInURL *string    `json:"linkedin_url"`
	Brands      []BrandRef `json:"brands"`
}

func (p *ContactPayload) normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	if p.Phone != nil {
		v := strings.TrimSpace(*p.Phone)
		p.Phone = &v
	}
	if p.LinkedInURL != nil {
		v := strings.TrimSpace(*p.LinkedInURL)
		p.LinkedInURL = &v
	}
}

// SplitName turns "Jane van Dyke" into ("Jane", "van Dyke").
func SplitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Action is what reconciliation did with a payload.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Match names the key that found an existing contact.
type Match string

const (
	MatchNone     Match = "none"
	MatchSourceID Match = "source_id"
	MatchEmail    Match = "email"
	MatchName     Match = "name"
)

// Outcome reports the result of one Reconcile call.
type Outcome struct {
	Action  Action          `json:"action"`
	Match   Match           `json:"match"`
	Contact *models.Contact `json:"contact,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// EmailPolicy decides whether an update may replace a stored email.
type EmailPolicy int

const (
	// EmailOverwrite replaces the stored email with any well-formed payload email.
	EmailOverwrite EmailPolicy = iota
	// EmailKeep only fills an empty stored email.
	EmailKeep
)

func (p EmailPolicy) String() string {
	if p == EmailKeep {
		return "keep"
	}
	return "overwrite"
}
