package webhook

import (
	"context"
	"time"

	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/store"
)

// EventContactUpdated is sent after a contact is edited locally.
const EventContactUpdated = "contact.updated"

// BrandPayload is an advertiser reference inside an outbound contact.
type BrandPayload struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ContactUpdatedPayload is the body of a contact.updated notification.
type ContactUpdatedPayload struct {
	ID          *int           `json:"id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	LinkedInURL string         `json:"linkedin_url"`
	Brands      []BrandPayload `json:"brands"`
	UpdatedAt   string         `json:"updated_at"`
}

// Notifier builds domain payloads and hands them to a Dispatcher.
type Notifier struct {
	db         *gorm.DB
	dispatcher *Dispatcher
}

func NewNotifier(db *gorm.DB, dispatcher *Dispatcher) *Notifier {
	return &Notifier{db: db, dispatcher: dispatcher}
}

// BuildContactUpdated assembles the payload with every related advertiser.
func BuildContactUpdated(ctx context.Context, db *gorm.DB, contact *models.Contact) (*ContactUpdatedPayload, error) {
	related, err := store.RelatedAdvertisers(ctx, db, contact)
	if err != nil {
		return nil, err
	}

	brands := make([]BrandPayload, 0, len(related))
	for _, adv := range related {
		brands = append(brands, BrandPayload{ID: adv.ID, Name: adv.Name})
	}

	return &ContactUpdatedPayload{
		ID:          contact.AgencyCRMID,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Email:       contact.Email,
		Phone:       contact.Phone,
		LinkedInURL: contact.LinkedInURL,
		Brands:      brands,
		UpdatedAt:   contact.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// ContactUpdated notifies subscribers of a contact edit.
func (n *Notifier) ContactUpdated(ctx context.Context, contact *models.Contact) ([]models.WebhookLog, error) {
	payload, err := BuildContactUpdated(ctx, n.db, contact)
	if err != nil {
		return nil, err
	}
	return n.dispatcher.Dispatch(ctx, EventContactUpdated, payload), nil
}
