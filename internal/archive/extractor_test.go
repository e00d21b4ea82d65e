package archive

import (
	"archive/zip"
	"context"
	"os"
	"sort"
	"testing"
)

func createTestZip(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-archive-*.zip")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}

	zw := zip.NewWriter(tmpFile)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("close zip writer: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   MIMEType
	}{
		{"zip", []byte{'P', 'K', 0x03, 0x04, 0, 0, 0, 0}, MIMEZip},
		{"zip empty archive marker", []byte{'P', 'K', 0x05, 0x06, 0, 0, 0, 0}, MIMEZip},
		{"rar", []byte{'R', 'a', 'r', '!', 0x1a, 0x07, 0, 0}, MIMERar},
		{"sevenzip", []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C, 0, 0}, MIMESevenZip},
		{"exe", []byte{'M', 'Z', 0, 0, 0, 0, 0, 0}, MIMEExe},
		{"unrecognized", []byte{1, 2, 3, 4, 5, 6, 7, 8}, MIMEOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectMIME(tt.header)
			if got != tt.want {
				t.Errorf("DetectMIME() = %v, want %v", got, tt.want)
			}
			if !ok {
				t.Errorf("DetectMIME() ok = false, want true")
			}
		})
	}

	t.Run("empty header", func(t *testing.T) {
		got, ok := DetectMIME(nil)
		if ok {
			t.Errorf("DetectMIME(nil) ok = true, want false")
		}
		if got != MIMEOther {
			t.Errorf("DetectMIME(nil) = %v, want MIMEOther", got)
		}
	})
}

func TestExtractZipCollectsOnlyPluginFiles(t *testing.T) {
	zipPath := createTestZip(t, map[string]string{
		"readme.txt":        "not a plugin",
		"Data/Mod.esp":      "esp bytes",
		"Data/Mod.esm":      "esm bytes",
		"Data\\Sub\\X.esl":  "esl bytes with backslash path",
		"textures/tex.dds":  "texture",
	})
	defer os.Remove(zipPath)

	ext := New(Config{})
	plugins, err := ext.Extract(context.Background(), zipPath, MIMEZip)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(plugins) != 3 {
		t.Fatalf("Extract() got %d plugins, want 3", len(plugins))
	}

	paths := make([]string, len(plugins))
	for i, p := range plugins {
		paths[i] = p.Path
	}
	sort.Strings(paths)

	want := []string{"Data/Mod.esm", "Data/Mod.esp", "Data/Sub/X.esl"}
	for i, w := range want {
		if paths[i] != w {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], w)
		}
	}
}

func TestExtractNoPluginsReturnsEmptySequence(t *testing.T) {
	zipPath := createTestZip(t, map[string]string{
		"readme.txt": "nothing to see here",
	})
	defer os.Remove(zipPath)

	ext := New(Config{})
	plugins, err := ext.Extract(context.Background(), zipPath, MIMEZip)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(plugins) != 0 {
		t.Errorf("Extract() got %d plugins, want 0", len(plugins))
	}
}

func TestExtractExeIsUnableToExtract(t *testing.T) {
	ext := New(Config{})
	_, err := ext.Extract(context.Background(), "/nonexistent/installer.exe", MIMEExe)
	if err != ErrUnableToExtract {
		t.Errorf("Extract() error = %v, want ErrUnableToExtract", err)
	}
}

func TestExtractRequiresPath(t *testing.T) {
	ext := New(Config{})
	_, err := ext.Extract(context.Background(), "", MIMEZip)
	if err != ErrNoArchivePath {
		t.Errorf("Extract() error = %v, want ErrNoArchivePath", err)
	}
}

func TestExtractNonExistentArchiveFallsBackAndFails(t *testing.T) {
	ext := New(Config{SevenZipPath: "modmapper-test-7z-does-not-exist"})
	_, err := ext.Extract(context.Background(), "/nonexistent/archive.zip", MIMEZip)
	if err == nil {
		t.Error("Extract() error = nil, want non-nil for missing archive and missing 7z binary")
	}
}
