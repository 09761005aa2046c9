package cas_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.trai.ch/pgo/internal/adapters/cas"
	"go.trai.ch/pgo/internal/core/domain"
)

func TestStore_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	imagePath := filepath.Join(tmpDir, "cds.img")

	store := cas.NewStore()

	record := domain.BuildRecord{
		ImagePath:      imagePath,
		Size:           4096,
		Entries:        2,
		ManifestDigest: "abc",
		BuiltAt:        time.Now().UTC().Truncate(time.Second),
		Duration:       3 * time.Second,
	}

	if err := store.Put(record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(imagePath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if !got.BuiltAt.Equal(record.BuiltAt) {
		t.Errorf("expected BuiltAt %v, got %v", record.BuiltAt, got.BuiltAt)
	}
	got.BuiltAt = record.BuiltAt
	if *got != record {
		t.Errorf("expected %+v, got %+v", record, *got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := cas.NewStore()

	got, err := store.Get(filepath.Join(t.TempDir(), "cds.img"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil record, got %+v", got)
	}
}

func TestStore_Persistence(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cds.img")

	if err := cas.NewStore().Put(domain.BuildRecord{ImagePath: imagePath, Size: 15}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cas.NewStore().Get(imagePath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Size != 15 {
		t.Errorf("expected size 15, got %+v", got)
	}
}

func TestStore_OmitZero(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cds.img")

	if err := cas.NewStore().Put(domain.BuildRecord{ImagePath: imagePath}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	//nolint:gosec // Test file with controlled path
	content, err := os.ReadFile(cas.RecordPath(imagePath))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	jsonStr := string(content)
	for _, field := range []string{"manifest_digest", "built_at", "duration", "size"} {
		if strings.Contains(jsonStr, field) {
			t.Errorf("JSON should not contain %q for zero value: %s", field, jsonStr)
		}
	}
	if !strings.Contains(jsonStr, "image_path") {
		t.Error("JSON should contain 'image_path'")
	}
}

func TestStore_PutWithoutImagePath(t *testing.T) {
	if err := cas.NewStore().Put(domain.BuildRecord{Size: 1}); err == nil {
		t.Fatal("expected error for record without image path")
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cds.img")
	if err := os.WriteFile(cas.RecordPath(imagePath), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := cas.NewStore().Get(imagePath); err == nil {
		t.Fatal("expected error for corrupt record")
	}
}
