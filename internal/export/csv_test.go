package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/tilewalk/record"
)

func sampleRecords() []record.ProfileRecord {
	return []record.ProfileRecord{
		{
			ID: 1, ProfileID: "12345", Name: "Alex", Username: "alex_b",
			Bio: `likes "quotes", commas, and
newlines`,
			Location: "Berlin", Age: "31", ProfileURL: "https://example.com/profile/alex_b/",
		},
		{
			ID: 2, Name: "Ben", Distance: "2 km away",
			ProfileURL: "https://example.com/profile/ben/",
			FaceResult: json.RawMessage("{\n  \"faces\": []\n}"),
		},
	}
}

func TestAssemble_TravelRoundTrip(t *testing.T) {
	recs := sampleRecords()
	out := Assemble(recs, TravelSchema())

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	header := rows[0]
	if len(header) != 25 {
		t.Fatalf("header columns = %d, want 25", len(header))
	}
	if header[0] != "id" || header[18] != "dick" || header[24] != "facepp_json" {
		t.Fatalf("unexpected header: %v", header)
	}

	if rows[1][0] != "1" || rows[1][2] != "Alex" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if got := rows[1][4]; got != recs[0].Bio {
		t.Errorf("bio did not survive round trip: %q", got)
	}
	if rows[2][24] != `{  "faces": []}` {
		t.Errorf("face json = %q, want newlines stripped", rows[2][24])
	}
}

func TestAssemble_NearbyColumns(t *testing.T) {
	out := Assemble(sampleRecords(), NearbySchema())
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []string{"id", "name", "bio", "extra", "profileUrl", "image_base64", "facepp_json"}
	if strings.Join(rows[0], ",") != strings.Join(want, ",") {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[2][3] != "2 km away" {
		t.Errorf("extra = %q, want distance", rows[2][3])
	}
}

func TestAssemble_AllCellsQuoted(t *testing.T) {
	out := Assemble([]record.ProfileRecord{{ID: 7, Name: "Cleo"}}, NearbySchema())
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, `"`) || !strings.HasSuffix(line, `"`) {
			t.Errorf("line not fully quoted: %q", line)
		}
	}
	if !strings.Contains(out, `"7","Cleo"`) {
		t.Errorf("values not quote-wrapped: %q", out)
	}
	quoted := Assemble([]record.ProfileRecord{{ID: 1, Bio: `he said "hi"`}}, NearbySchema())
	if !strings.Contains(quoted, `"he said ""hi"""`) {
		t.Errorf("inner quotes not doubled: %q", quoted)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	recs := sampleRecords()
	a := Assemble(recs, TravelSchema())
	b := Assemble(recs, TravelSchema())
	if a != b {
		t.Fatal("same input produced different output")
	}
}

func TestAssemble_EmptyBatch(t *testing.T) {
	out := Assemble(nil, NearbySchema())
	if strings.Count(out, "\n") != 0 {
		t.Fatalf("empty batch should be header only: %q", out)
	}
}

func TestForVariant(t *testing.T) {
	if len(ForVariant("nearby")) != 7 {
		t.Error("nearby schema size")
	}
	if len(ForVariant("travel")) != 25 {
		t.Error("travel schema size")
	}
	if len(ForVariant("")) != 25 {
		t.Error("unknown variant should fall back to travel")
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	got := Filename("travel", now)
	want := "romeo_travel_export_2024-03-09T14-05-06Z.csv"
	if got != want {
		t.Fatalf("Filename = %q, want %q", got, want)
	}
	if strings.ContainsAny(got, ":") {
		t.Error("filename contains characters unsafe on some filesystems")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	path, err := Save(dir, "nearby", "\"id\"\n\"1\"", now)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "\"id\"\n\"1\"" {
		t.Errorf("content = %q", data)
	}
	if !strings.HasSuffix(path, "romeo_nearby_export_2024-03-09T14-05-06Z.csv") {
		t.Errorf("path = %q", path)
	}
}
