package store

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tilewalk/record"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLastBatch(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	first := record.Batch{
		Variant:   "travel",
		CreatedAt: time.Unix(1000, 0),
		Records: []record.ProfileRecord{
			{ID: 1, Name: "Alex", ProfileURL: "/profile/alex/"},
			{ID: 2, Name: "Ben"},
		},
	}
	if err := s.SaveBatch(ctx, first); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	second := record.Batch{
		Variant:   "travel",
		CreatedAt: time.Unix(2000, 0),
		Records:   []record.ProfileRecord{{ID: 1, Name: "Cleo"}},
	}
	if err := s.SaveBatch(ctx, second); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	got, err := s.LastBatch(ctx, "travel")
	if err != nil {
		t.Fatalf("LastBatch: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Name != "Cleo" {
		t.Fatalf("LastBatch returned stale batch: %+v", got.Records)
	}
	if !got.CreatedAt.Equal(time.Unix(2000, 0)) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
}

func TestLastBatch_VariantFilter(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	s.SaveBatch(ctx, record.Batch{Variant: "nearby", CreatedAt: time.Unix(1000, 0),
		Records: []record.ProfileRecord{{Name: "N"}}})
	s.SaveBatch(ctx, record.Batch{Variant: "travel", CreatedAt: time.Unix(2000, 0),
		Records: []record.ProfileRecord{{Name: "T"}}})

	got, err := s.LastBatch(ctx, "nearby")
	if err != nil {
		t.Fatalf("LastBatch: %v", err)
	}
	if got.Records[0].Name != "N" {
		t.Errorf("variant filter broken: got %q", got.Records[0].Name)
	}

	any, err := s.LastBatch(ctx, "")
	if err != nil {
		t.Fatalf("LastBatch any: %v", err)
	}
	if any.Variant != "travel" {
		t.Errorf("any-variant should return newest, got %q", any.Variant)
	}
}

func TestLastBatch_Empty(t *testing.T) {
	s := openMemory(t)
	if _, err := s.LastBatch(context.Background(), ""); !errors.Is(err, ErrNoBatch) {
		t.Fatalf("err = %v, want ErrNoBatch", err)
	}
}

func TestSettings(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if v, err := s.Setting(ctx, SettingFaceKey); err != nil || v != "" {
		t.Fatalf("unset setting = %q, %v", v, err)
	}
	if err := s.SaveSetting(ctx, SettingFaceKey, "k1"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	if err := s.SaveSetting(ctx, SettingFaceKey, "k2"); err != nil {
		t.Fatalf("SaveSetting upsert: %v", err)
	}
	v, err := s.Setting(ctx, SettingFaceKey)
	if err != nil {
		t.Fatalf("Setting: %v", err)
	}
	if v != "k2" {
		t.Errorf("Setting = %q, want upserted value", v)
	}
}
