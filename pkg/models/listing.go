package models

import "time"

const (
	SourceVinted    = "vinted"
	SourceLeboncoin = "leboncoin"
)

// Listing is a single marketplace advertisement. It is never modified after
// a source returns it.
type Listing struct {
	Source      string    `json:"source"`
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Price       float64   `json:"listing_price"`
	ImageURL    string    `json:"image_url,omitempty"`
	Description string    `json:"description,omitempty"`
	User        string    `json:"user,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
