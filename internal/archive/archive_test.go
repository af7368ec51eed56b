package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshot_WritesMarkdown(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	w.Snapshot(3, "https://example.com/profile/alex/", `
		<html><body>
			<h1>Alex</h1>
			<p>Age: <b>31</b></p>
			<script>alert("tracking")</script>
		</body></html>`)

	data, err := os.ReadFile(filepath.Join(dir, "profile-003.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "https://example.com/profile/alex/") {
		t.Error("snapshot should record the source URL")
	}
	if !strings.Contains(got, "Alex") || !strings.Contains(got, "31") {
		t.Errorf("content missing: %q", got)
	}
	if strings.Contains(got, "alert(") {
		t.Error("script content should be sanitized away")
	}
}

func TestSnapshot_EmptyPageIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	w.Snapshot(1, "https://example.com/", "")

	if _, err := os.Stat(filepath.Join(dir, "profile-001.md")); !os.IsNotExist(err) {
		t.Fatal("empty page should not produce a snapshot file")
	}
}
