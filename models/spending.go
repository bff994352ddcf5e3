package models

import (
	"gorm.io/gorm"
)

// Channel retention factors (1 - standard industry discount) used when no
// manual net total has been entered.
const (
	RetentionTV            = 0.2
	RetentionCinema        = 0.2
	RetentionRadio         = 0.3
	RetentionOutdoorStatic = 0.5
	RetentionBillboard     = 0.5
	RetentionInternet      = 0.5
	RetentionMagazines     = 0.5
	RetentionNewspapers    = 0.5
	RetentionIndoorTV      = 0.5
)

// SpendingData is one year of gross media spend for an advertiser.
type SpendingData struct {
	gorm.Model
	AdvertiserID uint `gorm:"not null;uniqueIndex:idx_spending_advertiser_year" json:"advertiser_id"`
	Year         int  `gorm:"not null;uniqueIndex:idx_spending_advertiser_year" json:"year"`

	// Gross channel spend
	TV            float64 `gorm:"default:0" json:"tv"`
	Cinema        float64 `gorm:"default:0" json:"cinema"`
	Radio         float64 `gorm:"default:0" json:"radio"`
	OutdoorStatic float64 `gorm:"default:0" json:"outdoor_static"`
	Billboard     float64 `gorm:"default:0" json:"billboard"`
	Internet      float64 `gorm:"default:0" json:"internet"`
	Magazines     float64 `gorm:"default:0" json:"magazines"`
	Newspapers    float64 `gorm:"default:0" json:"newspapers"`
	IndoorTV      float64 `gorm:"default:0" json:"indoor_tv"`

	GrandTotal float64  `gorm:"default:0" json:"grand_total"`
	NetTotal   *float64 `json:"net_total"` // manually entered, wins over the calculated value
}

// CalculatedNetTotal returns the manual net total when set, otherwise the
// retention-weighted sum of the gross channels.
func (s *SpendingData) CalculatedNetTotal() float64 {
	if s.NetTotal != nil {
		return *s.NetTotal
	}

	net := 0.0
	net += s.TV * RetentionTV
	net += s.Cinema * RetentionCinema
	net += s.Radio * RetentionRadio
	net += s.OutdoorStatic * RetentionOutdoorStatic
	net += s.Billboard * RetentionBillboard
	net += s.Internet * RetentionInternet
	net += s.Magazines * RetentionMagazines
	net += s.Newspapers * RetentionNewspapers
	net += s.IndoorTV * RetentionIndoorTV
	return net
}
