package blobstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesContentAddressedPath(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	dest, err := s.Write("skyrimspecialedition", 100, 200, "Data/Mod.esp", []byte("plugin bytes"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := filepath.Join(dir, "plugins", "skyrimspecialedition", "100", "200", "Data", "Mod.esp")
	if dest != want {
		t.Errorf("Write() path = %q, want %q", dest, want)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read written blob: %v", err)
	}
	if string(got) != "plugin bytes" {
		t.Errorf("blob contents = %q, want %q", got, "plugin bytes")
	}
}

func TestWriteOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.Write("skyrimspecialedition", 1, 2, "Mod.esp", []byte("first")); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	dest, err := s.Write("skyrimspecialedition", 1, 2, "Mod.esp", []byte("second, and longer"))
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read written blob: %v", err)
	}
	if string(got) != "second, and longer" {
		t.Errorf("blob contents = %q, want overwritten contents", got)
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries in blob dir, want 1 (no leftover temp files)", len(entries))
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if s.Exists("skyrimspecialedition", 1, 2, "Mod.esp") {
		t.Error("Exists() = true before Write, want false")
	}
	if _, err := s.Write("skyrimspecialedition", 1, 2, "Mod.esp", []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !s.Exists("skyrimspecialedition", 1, 2, "Mod.esp") {
		t.Error("Exists() = false after Write, want true")
	}
}
