// Package record defines the deduplicated business record and its store.
package record

import (
	"time"
)

// Business is the deduplicated record for a harvested business listing.
// Identity is (Name, Address) when an address was captured, Name alone
// otherwise. Fields fill on first non-empty observation and are never
// overwritten afterwards.
type Business struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
	Location string `json:"location" db:"location"`
	Address  string `json:"address,omitempty" db:"address"`

	// Contact
	Phone    string `json:"phone,omitempty" db:"phone"`
	WhatsApp string `json:"whatsapp,omitempty" db:"whatsapp"`
	Email    string `json:"email,omitempty" db:"email"`
	Website  string `json:"website,omitempty" db:"website"`

	// Social
	Instagram string `json:"instagram,omitempty" db:"instagram"`
	Facebook  string `json:"facebook,omitempty" db:"facebook"`
	LinkedIn  string `json:"linkedin,omitempty" db:"linkedin"`
	Twitter   string `json:"twitter,omitempty" db:"twitter"`

	SourceURL   string   `json:"source_url,omitempty" db:"source_url"`
	Rating      *float64 `json:"rating,omitempty" db:"rating"`
	ReviewCount *int     `json:"review_count,omitempty" db:"review_count"`
	Hours       string   `json:"hours,omitempty" db:"hours"`
	Latitude    *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" db:"longitude"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasContact reports whether the record carries at least one contact field
// from the enabled set.
func (b *Business) HasContact(req ContactRequirement) bool {
	if req.Phone && b.Phone != "" {
		return true
	}
	if req.WhatsApp && b.WhatsApp != "" {
		return true
	}
	if req.Email && b.Email != "" {
		return true
	}
	if req.Website && b.Website != "" {
		return true
	}
	if req.Social && (b.Instagram != "" || b.Facebook != "" || b.LinkedIn != "" || b.Twitter != "") {
		return true
	}
	return false
}

// ContactRequirement selects which contact fields qualify a record for saving.
// A record qualifies when at least one enabled field is populated.
type ContactRequirement struct {
	Phone    bool `json:"phone" mapstructure:"phone"`
	WhatsApp bool `json:"whatsapp" mapstructure:"whatsapp"`
	Email    bool `json:"email" mapstructure:"email"`
	Website  bool `json:"website" mapstructure:"website"`
	Social   bool `json:"social" mapstructure:"social"`
}

// DefaultContactRequirement accepts any direct contact channel: phone,
// whatsapp or email qualifies.
func DefaultContactRequirement() ContactRequirement {
	return ContactRequirement{Phone: true, WhatsApp: true, Email: true}
}

// Outcome classifies what an upsert did with a candidate record.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"   // new record inserted
	OutcomeUpdated Outcome = "updated" // existing record gained fields
	OutcomeSkipped Outcome = "skipped" // duplicate with nothing new
)
