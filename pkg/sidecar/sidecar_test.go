package sidecar

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

func sampleFile() model.File {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	return model.File{
		FileID:           uuid.New(),
		OriginalFilename: "report.pdf",
		StorageFilename:  "report_alice_20260305T120000_abcd1234.pdf",
		StoragePath:      "2026/03/05/12",
		SizeBytes:        1024,
		SHA256Hash:       strings.Repeat("a", 64),
		UploadedBy:       "alice",
		UploadedAt:       now,
		RetentionDays:    365,
		ExpiresAt:        now.AddDate(1, 0, 0),
		Version:          1,
		SchemaVersion:    model.SchemaV1,
	}
}

func TestMarshalStampsSchemaV2(t *testing.T) {
	data, err := Marshal(sampleFile())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.SchemaVersion != model.SchemaV2 {
		t.Errorf("SchemaVersion = %q, want %q", got.SchemaVersion, model.SchemaV2)
	}
}

func TestUnmarshalAcceptsV1AndV2(t *testing.T) {
	for _, v := range []model.SchemaVersion{model.SchemaV1, model.SchemaV2} {
		f := sampleFile()
		f.SchemaVersion = v
		data, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("marshal fixture: %v", err)
		}
		if _, err := Unmarshal(data); err != nil {
			t.Errorf("Unmarshal(schema_version=%s) error = %v", v, err)
		}
	}
}

func TestMarshalRejectsOversizedSidecar(t *testing.T) {
	f := sampleFile()
	big := make(map[string]any, 1000)
	for i := 0; i < 1000; i++ {
		big[strings.Repeat("k", 10)+uuid.NewString()] = strings.Repeat("v", 50)
	}
	f.Custom = big

	_, err := Marshal(f)
	if err == nil {
		t.Fatal("Marshal() error = nil, want ErrTooLarge")
	}
	var tooLarge *ErrTooLarge
	if !errors.As(err, &tooLarge) {
		t.Errorf("error = %v, want *ErrTooLarge", err)
	}
}

func TestWriteAtomicThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object.attr.json")
	f := sampleFile()

	if err := WriteAtomic(path, f); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not remain after WriteAtomic()")
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.FileID != f.FileID {
		t.Errorf("FileID = %v, want %v", got.FileID, f.FileID)
	}
	if got.SchemaVersion != model.SchemaV2 {
		t.Errorf("SchemaVersion = %q, want %q", got.SchemaVersion, model.SchemaV2)
	}
}

func TestWriteAtomicOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object.attr.json")
	f := sampleFile()

	if err := WriteAtomic(path, f); err != nil {
		t.Fatalf("first WriteAtomic() error = %v", err)
	}

	desc := "updated description"
	f.Description = &desc
	if err := WriteAtomic(path, f); err != nil {
		t.Fatalf("second WriteAtomic() error = %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Description == nil || *got.Description != desc {
		t.Errorf("Description = %v, want %q", got.Description, desc)
	}
}
