package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Vector is a dense embedding stored as jsonb. A nil or empty vector means
// the record has not been embedded (or the last attempt failed).
type Vector []float64

func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("Vector.Scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, v)
}

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// IsZero reports whether the vector carries no usable signal.
func (v Vector) IsZero() bool {
	return len(v) == 0
}

// Listing is a property record as the detection engine sees it. Listing CRUD
// is owned elsewhere; this service reads listings and maintains the cached
// embedding columns.
type Listing struct {
	ID          string  `json:"id" db:"id"`
	OwnerID     string  `json:"owner_id" db:"owner_id"`
	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	Street      string  `json:"street" db:"street"`
	HouseNumber string  `json:"house_number" db:"house_number"`
	City        string  `json:"city" db:"city"`
	ZipCode     string  `json:"zip_code" db:"zip_code"`

	Rent      *float64 `json:"rent,omitempty" db:"rent"`
	Size      *float64 `json:"size,omitempty" db:"size"`
	Bedrooms  *int     `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms *int     `json:"bathrooms,omitempty" db:"bathrooms"`

	ImageURLs pq.StringArray `json:"image_urls" db:"image_urls"`

	// Embedding columns are maintained by this service. TextFingerprint is a
	// hash of the embedded text; when the listing text changes the fingerprint
	// no longer matches and the cached vector is discarded.
	Embedding       Vector  `json:"-" db:"embedding"`
	TextFingerprint *string `json:"-" db:"text_fingerprint"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Address returns the concatenated address used for lexical comparison.
func (l *Listing) Address() string {
	parts := ""
	for _, p := range []string{l.Street, l.HouseNumber, l.ZipCode, l.City} {
		if p == "" {
			continue
		}
		if parts != "" {
			parts += " "
		}
		parts += p
	}
	return parts
}

// CombinedText returns the text embedded for semantic comparison.
func (l *Listing) CombinedText() string {
	text := l.Title
	if l.Description != "" {
		if text != "" {
			text += "\n"
		}
		text += l.Description
	}
	return text
}
