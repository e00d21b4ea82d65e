package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mholt/archiver/v4"
)

// Config configures an Extractor.
type Config struct {
	// SevenZipPath is the path to (or bare name of) the external 7z binary
	// used as the extraction fallback. Defaults to "7z".
	SevenZipPath string

	// TempDir is the scratch directory for the external-7z fallback and for
	// native-RAR extraction. Defaults to os.TempDir().
	TempDir string
}

// Extractor performs multi-strategy extraction of plugin files from a
// downloaded archive, falling back to an external 7z invocation when the
// in-process strategy fails.
type Extractor struct {
	sevenZipPath string
	tempDir      string
}

// New builds an Extractor.
func New(cfg Config) *Extractor {
	sevenZipPath := cfg.SevenZipPath
	if sevenZipPath == "" {
		sevenZipPath = "7z"
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Extractor{sevenZipPath: sevenZipPath, tempDir: tempDir}
}

// Extract dispatches archivePath to the strategy appropriate for mime and
// returns every plugin entry found, in archive-listing order. A .exe input
// returns ErrUnableToExtract immediately: it is never an archive. Any other
// returned error means every applicable strategy (including the 7z
// fallback) failed; the caller decides whether that is fatal based on
// whether the file had a metadata preview promising a plugin.
func (e *Extractor) Extract(ctx context.Context, archivePath string, mime MIMEType) ([]PluginFile, error) {
	if archivePath == "" {
		return nil, ErrNoArchivePath
	}

	switch mime {
	case MIMEExe:
		return nil, ErrUnableToExtract

	case MIMERar:
		files, err := e.extractRarNative(ctx, archivePath)
		if err != nil {
			return e.extractSevenZip(ctx, archivePath)
		}
		return files, nil

	case MIMEZip, MIMESevenZip:
		files, err := e.extractStreaming(ctx, archivePath)
		if err != nil {
			return e.extractSevenZip(ctx, archivePath)
		}
		return files, nil

	default:
		return e.extractStreaming(ctx, archivePath)
	}
}

// extractStreaming identifies the archive format and walks its entries
// in-process via archiver.Extractor, collecting every plugin file. This is
// the primary strategy for zip/7z and the best-effort strategy for unknown
// MIME types.
func (e *Extractor) extractStreaming(ctx context.Context, archivePath string) ([]PluginFile, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	format, input, err := archiver.Identify(ctx, archivePath, f)
	if err != nil {
		return nil, fmt.Errorf("%w: identify format: %v", ErrExtractionFailed, err)
	}

	extractor, ok := format.(archiver.Extractor)
	if !ok {
		return nil, fmt.Errorf("%w: format does not support streaming extraction", ErrExtractionFailed)
	}

	var plugins []PluginFile
	err = extractor.Extract(ctx, input, func(ctx context.Context, fi archiver.FileInfo) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fi.IsDir() || !isPluginPath(fi.NameInArchive) {
			return nil
		}

		rc, err := fi.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", fi.NameInArchive, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read archive entry %s: %w", fi.NameInArchive, err)
		}

		plugins = append(plugins, PluginFile{Path: normalizePath(fi.NameInArchive), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return plugins, nil
}

// extractRarNative extracts every plugin entry of a RAR archive to a
// uuid-named scratch directory before reading it back. It is kept distinct
// from extractStreaming because RAR's native extractor is known to fail on
// archives with Unicode filenames, which is the 7z fallback's trigger for
// this MIME type.
func (e *Extractor) extractRarNative(ctx context.Context, archivePath string) ([]PluginFile, error) {
	scratchDir, err := os.MkdirTemp(e.tempDir, "modmapper-rar-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", ErrExtractionFailed, err)
	}
	defer os.RemoveAll(scratchDir)

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	format, input, err := archiver.Identify(ctx, archivePath, f)
	if err != nil {
		return nil, fmt.Errorf("%w: identify format: %v", ErrExtractionFailed, err)
	}
	extractor, ok := format.(archiver.Extractor)
	if !ok {
		return nil, fmt.Errorf("%w: rar format does not support streaming extraction", ErrExtractionFailed)
	}

	var names []string
	err = extractor.Extract(ctx, input, func(ctx context.Context, fi archiver.FileInfo) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fi.IsDir() || !isPluginPath(fi.NameInArchive) {
			return nil
		}

		destPath := filepath.Join(scratchDir, normalizePath(fi.NameInArchive))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", fi.NameInArchive, err)
		}

		rc, err := fi.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", fi.NameInArchive, err)
		}
		defer rc.Close()

		dest, err := os.Create(destPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		defer dest.Close()

		if _, err := io.Copy(dest, rc); err != nil {
			return fmt.Errorf("extract entry %s: %w", fi.NameInArchive, err)
		}

		names = append(names, fi.NameInArchive)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	plugins := make([]PluginFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(scratchDir, normalizePath(name)))
		if err != nil {
			return nil, fmt.Errorf("%w: read extracted entry %s: %v", ErrExtractionFailed, name, err)
		}
		plugins = append(plugins, PluginFile{Path: normalizePath(name), Data: data})
	}
	return plugins, nil
}
