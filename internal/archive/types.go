// Package archive implements the multi-strategy plugin extractor:
// given a downloaded archive and a MIME-type signal, it yields every
// .esp/.esm/.esl entry inside, falling back to an external 7z invocation
// when the primary in-process strategy fails.
package archive

import (
	"errors"
	"strings"
)

// Common errors returned by the extractor.
var (
	// ErrUnableToExtract signals a definitive, non-retryable failure to
	// extract: the input is a non-archive installer (.exe). The caller
	// should mark unable_to_extract_plugins=true and move on.
	ErrUnableToExtract = errors.New("archive: unable to extract plugins")

	// ErrExtractionFailed wraps an extraction-strategy failure, both a
	// primary-strategy failure that falls back to the external 7z tool and
	// the final failure of that 7z fallback itself.
	ErrExtractionFailed = errors.New("archive: extraction failed")

	// ErrNoArchivePath is returned when Extract is called without a path.
	ErrNoArchivePath = errors.New("archive: path is required")
)

// PluginFile is one plugin entry found inside an archive: its path within
// the archive, backslashes normalized to forward slashes, and its raw bytes.
type PluginFile struct {
	Path string
	Data []byte
}

// MIMEType is the archive kind inferred from an archive's first bytes,
// driving strategy selection.
type MIMEType string

const (
	MIMEZip      MIMEType = "application/zip"
	MIMESevenZip MIMEType = "application/x-7z-compressed"
	MIMERar      MIMEType = "application/vnd.rar"
	MIMEExe      MIMEType = "application/vnd.microsoft.portable-executable"
	MIMEOther    MIMEType = "application/octet-stream"
)

// DetectMIME infers an archive's MIME type from its first 8 bytes.
// Unrecognized magic numbers are reported as MIMEOther so the caller still
// attempts a best-effort extraction.
func DetectMIME(header []byte) (MIMEType, bool) {
	switch {
	case len(header) >= 4 && header[0] == 'P' && header[1] == 'K' && (header[2] == 0x03 || header[2] == 0x05 || header[2] == 0x07):
		return MIMEZip, true
	case len(header) >= 6 && header[0] == 'R' && header[1] == 'a' && header[2] == 'r' && header[3] == '!' && header[4] == 0x1a && header[5] == 0x07:
		return MIMERar, true
	case len(header) >= 6 && header[0] == '7' && header[1] == 'z' && header[2] == 0xBC && header[3] == 0xAF && header[4] == 0x27 && header[5] == 0x1C:
		return MIMESevenZip, true
	case len(header) >= 2 && header[0] == 'M' && header[1] == 'Z':
		return MIMEExe, true
	case len(header) == 0:
		return MIMEOther, false
	default:
		return MIMEOther, true
	}
}

// isPluginPath reports whether a path within an archive ends in a plugin
// extension, case-insensitively.
func isPluginPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".esp") || strings.HasSuffix(lower, ".esm") || strings.HasSuffix(lower, ".esl")
}

// normalizePath converts archive-internal backslashes to forward slashes
// before the path is persisted as a Plugin.file_path.
func normalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
