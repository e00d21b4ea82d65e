package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// extractSevenZip shells out to the external 7z binary as the fallback
// strategy for RAR (Unicode filenames), zip (deflate64), and 7z archives:
// extract everything into a scratch directory, then walk the tree for
// plugin files. Only files (not directories) are considered.
func (e *Extractor) extractSevenZip(ctx context.Context, archivePath string) ([]PluginFile, error) {
	outputDir, err := os.MkdirTemp(e.tempDir, "modmapper-7z-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: create 7z output dir: %v", ErrExtractionFailed, err)
	}
	defer os.RemoveAll(outputDir)

	if err := e.run7z(ctx, archivePath, outputDir); err != nil {
		return nil, fmt.Errorf("%w: 7z extraction: %v", ErrExtractionFailed, err)
	}

	var plugins []PluginFile
	err = filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPluginPath(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read extracted entry %s: %w", path, err)
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			rel = path
		}
		plugins = append(plugins, PluginFile{Path: normalizePath(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk 7z output: %v", ErrExtractionFailed, err)
	}

	if plugins == nil {
		plugins = []PluginFile{}
	}
	return plugins, nil
}

// run7z invokes the configured 7z binary to extract archivePath into outDir.
func (e *Extractor) run7z(ctx context.Context, archivePath, outDir string) error {
	cmd := exec.CommandContext(ctx, e.sevenZipPath, "x", "-o"+outDir, archivePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s x -o%s %s: %w: %s", e.sevenZipPath, outDir, archivePath, err, output)
	}
	return nil
}
