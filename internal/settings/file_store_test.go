package settings

import (
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link.yaml")
	store := NewFileStore(path)

	want := Record{TXID: 0x0100, RXID: 0x0200, MonoChan: 64, PALevel: 3, SessionKey: 0xBEEF}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
	if !got.HasSession() {
		t.Error("expected HasSession() to be true after a committed key")
	}
}

func TestFileStoreMissingFileIsZeroRecord(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.HasSession() {
		t.Error("expected a missing file to report no prior session")
	}
}
