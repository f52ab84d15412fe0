package models

import "time"

// ImageHash caches the perceptual hash computed for one image of one record.
// Keyed by (record id, url) so the same url on two records is hashed once per
// record, matching how fetch failures are tracked per record.
type ImageHash struct {
	RecordID  string    `json:"record_id" db:"record_id"`
	URL       string    `json:"url" db:"url"`
	Hash      uint64    `json:"hash" db:"hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
