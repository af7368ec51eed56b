// Package export assembles a batch into CSV text and saves it with a
// timestamped filename. The column order is fixed per site variant; every
// cell is quote-wrapped with internal quotes doubled, so any standard CSV
// parser with double-quote escaping round-trips the values exactly.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/tilewalk/record"
)

// Column binds a header name to its value accessor.
type Column struct {
	Header string
	Value  func(*record.ProfileRecord) string
}

// Schema is the fixed, ordered column set of one variant.
type Schema []Column

var newlineStripper = strings.NewReplacer("\n", "", "\r", "")

// faceJSON serializes the enrichment field as single-line JSON, empty
// string when absent.
func faceJSON(r *record.ProfileRecord) string {
	if r.FaceResult == nil {
		return ""
	}
	return newlineStripper.Replace(string(r.FaceResult))
}

// TravelSchema is the full column set of the travel/explore variant.
func TravelSchema() Schema {
	return Schema{
		{"id", func(r *record.ProfileRecord) string { return strconv.Itoa(r.ID) }},
		{"profile_id", func(r *record.ProfileRecord) string { return r.ProfileID }},
		{"name", func(r *record.ProfileRecord) string { return r.Name }},
		{"username", func(r *record.ProfileRecord) string { return r.Username }},
		{"bio", func(r *record.ProfileRecord) string { return r.Bio }},
		{"location", func(r *record.ProfileRecord) string { return r.Location }},
		{"age", func(r *record.ProfileRecord) string { return r.Age }},
		{"age_range", func(r *record.ProfileRecord) string { return r.AgeRange }},
		{"height", func(r *record.ProfileRecord) string { return r.Height }},
		{"weight", func(r *record.ProfileRecord) string { return r.Weight }},
		{"body_type", func(r *record.ProfileRecord) string { return r.BodyType }},
		{"body_hair", func(r *record.ProfileRecord) string { return r.BodyHair }},
		{"languages", func(r *record.ProfileRecord) string { return r.Languages }},
		{"english", func(r *record.ProfileRecord) string { return r.English }},
		{"bengali", func(r *record.ProfileRecord) string { return r.Bengali }},
		{"hindi", func(r *record.ProfileRecord) string { return r.Hindi }},
		{"relationship", func(r *record.ProfileRecord) string { return r.Relationship }},
		{"position", func(r *record.ProfileRecord) string { return r.Position }},
		{"dick", func(r *record.ProfileRecord) string { return r.PhysicalAttr }},
		{"safer_sex", func(r *record.ProfileRecord) string { return r.SaferSex }},
		{"open_to", func(r *record.ProfileRecord) string { return r.OpenTo }},
		{"member_since", func(r *record.ProfileRecord) string { return r.MemberSince }},
		{"profileUrl", func(r *record.ProfileRecord) string { return r.ProfileURL }},
		{"image_base64", func(r *record.ProfileRecord) string { return r.ImageBase64 }},
		{"facepp_json", faceJSON},
	}
}

// NearbySchema is the short column set of the nearby-list variant.
func NearbySchema() Schema {
	return Schema{
		{"id", func(r *record.ProfileRecord) string { return strconv.Itoa(r.ID) }},
		{"name", func(r *record.ProfileRecord) string { return r.Name }},
		{"bio", func(r *record.ProfileRecord) string { return r.Bio }},
		{"extra", func(r *record.ProfileRecord) string { return r.Distance }},
		{"profileUrl", func(r *record.ProfileRecord) string { return r.ProfileURL }},
		{"image_base64", func(r *record.ProfileRecord) string { return r.ImageBase64 }},
		{"facepp_json", faceJSON},
	}
}

// ForVariant returns the schema for a variant name; unknown names get the
// travel superset.
func ForVariant(variant string) Schema {
	if variant == "nearby" {
		return NearbySchema()
	}
	return TravelSchema()
}

// Assemble renders records into CSV text. Row order is input order; the
// output is byte-identical across calls on the same input.
func Assemble(records []record.ProfileRecord, schema Schema) string {
	var sb strings.Builder

	for i, col := range schema {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeCell(&sb, col.Header)
	}
	for i := range records {
		sb.WriteByte('\n')
		for j, col := range schema {
			if j > 0 {
				sb.WriteByte(',')
			}
			writeCell(&sb, col.Value(&records[i]))
		}
	}
	return sb.String()
}

// writeCell quote-wraps a value with internal double-quotes doubled.
// Embedded newlines are preserved (except in the enrichment JSON, which
// is stripped before it reaches here).
func writeCell(sb *strings.Builder, v string) {
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(v, `"`, `""`))
	sb.WriteByte('"')
}

// Filename builds the export filename: variant plus a filesystem-safe
// RFC 3339 timestamp.
func Filename(variant string, now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(time.RFC3339))
	return fmt.Sprintf("romeo_%s_export_%s.csv", variant, ts)
}

// Save writes the CSV to dir under a timestamped name and returns the
// full path.
func Save(dir, variant, csvText string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	path := filepath.Join(dir, Filename(variant, now))
	if err := os.WriteFile(path, []byte(csvText), 0o644); err != nil {
		return "", fmt.Errorf("export: write csv: %w", err)
	}
	return path, nil
}
