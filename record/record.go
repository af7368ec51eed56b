// Package record defines the data model flowing through the tilewalk
// pipeline: tile stubs collected from a listing view, fully extracted
// profile records, and the batch that groups one automation run.
//
// Every string field defaults to the empty string. "Field not present on
// the page" and "extraction failed" both collapse to "": per-field
// failures are non-fatal and unreported.
package record

import (
	"encoding/json"
	"time"
)

// TileStub is one listing-page entry before detail extraction.
// SequenceID is assigned at collection time and is stable only within a
// single collection pass; the stub set is superseded whenever the listing
// container mutates (infinite scroll, SPA re-render).
type TileStub struct {
	SequenceID   int    `json:"sequence_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Distance     string `json:"distance"`
	Bio          string `json:"bio"`
	ThumbnailURL string `json:"thumbnail_url"`
	ProfileURL   string `json:"profile_url"`
}

// ProfileRecord is one fully detailed profile, the unit that flows through
// enrichment and export. Immutable once placed into a Batch.
type ProfileRecord struct {
	ID        int    `json:"id"`
	ProfileID string `json:"profile_id"`
	Name      string `json:"name"`
	Username  string `json:"username"`

	Bio         string `json:"bio"`
	Location    string `json:"location"`
	MemberSince string `json:"member_since"`

	Age              string `json:"age"`
	AgeRange         string `json:"age_range"`
	Height           string `json:"height"`
	Weight           string `json:"weight"`
	BodyType         string `json:"body_type"`
	BodyHair         string `json:"body_hair"`
	Languages        string `json:"languages"`
	English          string `json:"english"`
	Bengali          string `json:"bengali"`
	Hindi            string `json:"hindi"`
	Relationship     string `json:"relationship"`
	Position         string `json:"position"`
	PhysicalAttr     string `json:"physical_attr"`
	SaferSex         string `json:"safer_sex"`
	OpenTo           string `json:"open_to"`

	Distance string `json:"distance"`

	ImageURL    string `json:"image_url"`
	ImageBase64 string `json:"image_base64"`

	// FaceResult is the raw face-detection response, passed through
	// opaquely. nil means absent (disabled, failed, or no image).
	FaceResult json.RawMessage `json:"face_result,omitempty"`

	ProfileURL string `json:"profile_url"`
}

// Batch is the ordered result of one automation run. Order is processing
// order, which can differ from the original tile order when the in-page
// "next" control reorders traversal relative to back-button navigation.
type Batch struct {
	Variant   string          `json:"variant"`
	CreatedAt time.Time       `json:"created_at"`
	Records   []ProfileRecord `json:"records"`
}
