package namefmt

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStorageFilename(t *testing.T) {
	id := uuid.MustParse("12345678-1234-1234-1234-123456789abc")
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)

	got := StorageFilename("report.pdf", "alice", ts, id)
	want := "report_alice_20260305T143000_12345678.pdf"
	if got != want {
		t.Errorf("StorageFilename() = %q, want %q", got, want)
	}
}

func TestStorageFilenameSanitizesUnsafeChars(t *testing.T) {
	id := uuid.New()
	ts := time.Now().UTC()

	got := StorageFilename("../../etc/passwd", "bob", ts, id)
	if strings.Contains(got, "/") || strings.Contains(got, "..") {
		t.Errorf("StorageFilename() = %q, contains unsafe path segments", got)
	}
}

func TestStorageFilenameTruncatesLongStem(t *testing.T) {
	id := uuid.New()
	ts := time.Now().UTC()
	longName := strings.Repeat("a", 500) + ".txt"

	got := StorageFilename(longName, "carol", ts, id)
	if len(got) > MaxFilenameBytes {
		t.Errorf("len(StorageFilename()) = %d, want <= %d", len(got), MaxFilenameBytes)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Errorf("StorageFilename() = %q, want .txt suffix preserved", got)
	}
}

func TestDirectoryPrefix(t *testing.T) {
	ts := time.Date(2026, 1, 9, 7, 0, 0, 0, time.UTC)
	got := DirectoryPrefix(ts)
	want := "2026/01/09/07"
	if got != want {
		t.Errorf("DirectoryPrefix() = %q, want %q", got, want)
	}
}

func TestSidecarFilename(t *testing.T) {
	got := SidecarFilename("report_alice_20260305T143000_12345678.pdf")
	want := "report_alice_20260305T143000_12345678.pdf.attr.json"
	if got != want {
		t.Errorf("SidecarFilename() = %q, want %q", got, want)
	}
}
