package plugin

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Group type values from the record-group header's groupType field.
// Only the values relevant to worldspace/cell traversal are named; every
// other group is skipped over wholesale.
const (
	groupTop                  = 0
	groupWorldChildren        = 1
	groupInteriorCellBlock    = 2
	groupInteriorCellSubBlock = 3
	groupExteriorCellBlock    = 4
	groupExteriorCellSubBlock = 5
	groupCellChildren         = 6
)

// recordCompressedFlag marks a record's data as zlib-compressed, prefixed by
// a 4-byte uncompressed size.
const recordCompressedFlag = 0x00040000

// World is a worldspace record's form-id and human-readable editor id.
type World struct {
	FormID   uint32
	EditorID string
}

// Cell is a cell record. WorldFormID is nil for interior cells; X/Y are nil
// for interior cells and set for exterior cells.
type Cell struct {
	FormID       uint32
	WorldFormID  *uint32
	EditorID     string
	X, Y         *int32
	IsPersistent bool
}

// Contents holds the parsed header plus the worldspaces and cells
// extracted from a plugin, in record order.
type Contents struct {
	Header *PluginHeader
	Worlds []World
	Cells  []Cell
}

// ParsePlugin parses a full plugin buffer: the TES4 header (delegating to
// Parser.Parse) plus every WRLD and CELL record reachable by walking the
// record-group tree. Parse errors are non-fatal to the caller: return the
// error and let the orchestrator log-and-skip this plugin.
// filename is used only to disambiguate plugin type when header flags are
// ambiguous (see determinePluginType).
func ParsePlugin(data []byte, filename string) (*Contents, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := bytes.NewReader(data)
	header, err := NewParser().Parse(context.Background(), r, filename)
	if err != nil {
		return nil, err
	}

	c := &Contents{Header: header}
	for r.Len() > 0 {
		if err := walkGroup(r, c); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return c, nil
}

// groupHeader mirrors recordHeader's layout but with group-specific field
// semantics (label/groupType instead of flags/formID).
type groupHeader struct {
	groupSize uint32
	label     [4]byte
	groupType int32
}

func readGroupHeader(r io.Reader) (*groupHeader, error) {
	var buf [20]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	var h groupHeader
	h.groupSize = binary.LittleEndian.Uint32(buf[0:4])
	copy(h.label[:], buf[4:8])
	h.groupType = int32(binary.LittleEndian.Uint32(buf[8:12]))
	return &h, nil
}

// walkGroup reads one top-level entry, which must be a GRUP (descended into
// or skipped depending on its label). Every top-level entry in a plugin file
// is a GRUP in practice; a non-GRUP signature at this level is treated as a
// corrupt/unsupported file and returns ErrInvalidPlugin.
func walkGroup(r *bytes.Reader, c *Contents) error {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return err
	}
	if string(sig[:]) != "GRUP" {
		return fmt.Errorf("%w: expected GRUP, got %s", ErrInvalidPlugin, string(sig[:]))
	}

	gh, err := readGroupHeader(r)
	if err != nil {
		return err
	}
	// groupSize includes the 24-byte GRUP header itself.
	remaining := int64(gh.groupSize) - 24
	if remaining < 0 {
		return fmt.Errorf("%w: negative group size", ErrInvalidPlugin)
	}

	bodyStart := r.Len()
	label := string(gh.label[:])

	switch {
	case gh.groupType == groupTop && label == "WRLD":
		if err := walkWorldTop(r, remaining, c); err != nil {
			return err
		}
	case gh.groupType == groupTop && label == "CELL":
		if err := walkInteriorCellTop(r, remaining, c); err != nil {
			return err
		}
	default:
		if _, err := r.Seek(remaining, io.SeekCurrent); err != nil {
			return err
		}
	}

	consumed := int64(bodyStart - r.Len())
	if consumed != remaining {
		// Defensive resync: a handler mis-consumed its group body.
		if _, err := r.Seek(remaining-consumed, io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

// walkWorldTop descends into the top-level WRLD group: a flat sequence of
// WRLD records, each optionally followed by a "World Children" (type 1)
// GRUP holding that worldspace's exterior cells.
func walkWorldTop(r *bytes.Reader, size int64, c *Contents) error {
	end := int64(r.Len()) - size
	var lastWorldFormID uint32

	for int64(r.Len()) > end {
		sig, err := peekSignature(r)
		if err != nil {
			return err
		}

		if sig == "GRUP" {
			gh, bodySize, err := readGroupAt(r)
			if err != nil {
				return err
			}
			if gh.groupType == groupWorldChildren {
				if err := walkWorldChildren(r, bodySize, lastWorldFormID, c); err != nil {
					return err
				}
			} else {
				if _, err := r.Seek(bodySize, io.SeekCurrent); err != nil {
					return err
				}
			}
			continue
		}

		rec, data, err := readRecord(r)
		if err != nil {
			return err
		}
		if sig == "WRLD" {
			editorID, _ := extractEditorID(data)
			c.Worlds = append(c.Worlds, World{FormID: rec.formID, EditorID: editorID})
			lastWorldFormID = rec.formID
		}
	}
	return nil
}

// walkWorldChildren walks a worldspace's exterior cell block/sub-block tree
// collecting CELL records, each tagged with the owning worldspace's form-id.
func walkWorldChildren(r *bytes.Reader, size int64, worldFormID uint32, c *Contents) error {
	end := int64(r.Len()) - size
	for int64(r.Len()) > end {
		sig, err := peekSignature(r)
		if err != nil {
			return err
		}

		if sig == "GRUP" {
			gh, bodySize, err := readGroupAt(r)
			if err != nil {
				return err
			}
			switch gh.groupType {
			case groupExteriorCellBlock, groupExteriorCellSubBlock:
				if err := walkWorldChildren(r, bodySize, worldFormID, c); err != nil {
					return err
				}
			case groupCellChildren:
				if _, err := r.Seek(bodySize, io.SeekCurrent); err != nil {
					return err
				}
			default:
				if _, err := r.Seek(bodySize, io.SeekCurrent); err != nil {
					return err
				}
			}
			continue
		}

		rec, data, err := readRecord(r)
		if err != nil {
			return err
		}
		if sig == "CELL" {
			cell := parseCellRecord(rec, data)
			world := worldFormID
			cell.WorldFormID = &world
			c.Cells = append(c.Cells, cell)
		}
	}
	return nil
}

// walkInteriorCellTop walks the top-level CELL group's interior block/
// sub-block tree collecting interior cells (no worldspace owner).
func walkInteriorCellTop(r *bytes.Reader, size int64, c *Contents) error {
	end := int64(r.Len()) - size
	for int64(r.Len()) > end {
		sig, err := peekSignature(r)
		if err != nil {
			return err
		}

		if sig == "GRUP" {
			gh, bodySize, err := readGroupAt(r)
			if err != nil {
				return err
			}
			switch gh.groupType {
			case groupInteriorCellBlock, groupInteriorCellSubBlock:
				if err := walkInteriorCellTop(r, bodySize, c); err != nil {
					return err
				}
			default:
				if _, err := r.Seek(bodySize, io.SeekCurrent); err != nil {
					return err
				}
			}
			continue
		}

		rec, data, err := readRecord(r)
		if err != nil {
			return err
		}
		if sig == "CELL" {
			c.Cells = append(c.Cells, parseCellRecord(rec, data))
		}
	}
	return nil
}

// readGroupAt reads a GRUP signature+header the caller has already peeked,
// returning the header and the size of its body (excluding the 24-byte
// group header itself).
func readGroupAt(r *bytes.Reader) (*groupHeader, int64, error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, 0, err
	}
	gh, err := readGroupHeader(r)
	if err != nil {
		return nil, 0, err
	}
	return gh, int64(gh.groupSize) - 24, nil
}

func peekSignature(r *bytes.Reader) (string, error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return "", err
	}
	if _, err := r.Seek(-4, io.SeekCurrent); err != nil {
		return "", err
	}
	return string(sig[:]), nil
}

type rawRecord struct {
	signature string
	formID    uint32
	flags     uint32
}

// readRecord reads one non-GRUP record header plus its (possibly
// zlib-compressed) data, positioning r immediately after it.
func readRecord(r *bytes.Reader) (*rawRecord, []byte, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, nil, err
	}

	rec := &rawRecord{
		signature: string(buf[0:4]),
		flags:     binary.LittleEndian.Uint32(buf[8:12]),
		formID:    binary.LittleEndian.Uint32(buf[12:16]),
	}
	dataSize := binary.LittleEndian.Uint32(buf[4:8])

	raw := make([]byte, dataSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTruncatedFile, err)
	}

	if rec.flags&recordCompressedFlag == 0 {
		return rec, raw, nil
	}

	if len(raw) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated compressed record", ErrInvalidPlugin)
	}
	uncompressedSize := binary.LittleEndian.Uint32(raw[0:4])
	zr, err := zlib.NewReader(bytes.NewReader(raw[4:]))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decompress record: %v", ErrInvalidPlugin, err)
	}
	defer zr.Close()

	decompressed := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, decompressed); err != nil {
		return nil, nil, fmt.Errorf("%w: decompress record: %v", ErrInvalidPlugin, err)
	}
	return rec, decompressed, nil
}

// parseCellRecord extracts the fields relevant to the Cell entity from a raw
// CELL record's subrecord stream: EDID (editor id), DATA (flags; bit 0 set
// means interior, bit 1 set is the persistent-reference marker this system
// records as is_persistent), and XCLC (exterior grid coordinates, present
// only on exterior cells).
func parseCellRecord(rec *rawRecord, data []byte) Cell {
	cell := Cell{FormID: rec.formID}

	reader := bytes.NewReader(data)
	for reader.Len() > 0 {
		var subHeader [6]byte
		if _, err := io.ReadFull(reader, subHeader[:]); err != nil {
			break
		}
		subType := string(subHeader[0:4])
		subSize := binary.LittleEndian.Uint16(subHeader[4:6])

		subData := make([]byte, subSize)
		if _, err := io.ReadFull(reader, subData); err != nil {
			break
		}

		switch subType {
		case "EDID":
			cell.EditorID = readNullTerminated(subData)
		case "DATA":
			if len(subData) >= 1 {
				cell.IsPersistent = subData[0]&0x02 != 0
			}
		case "XCLC":
			if len(subData) >= 8 {
				x := int32(binary.LittleEndian.Uint32(subData[0:4]))
				y := int32(binary.LittleEndian.Uint32(subData[4:8]))
				cell.X = &x
				cell.Y = &y
			}
		}
	}
	return cell
}

func extractEditorID(data []byte) (string, bool) {
	reader := bytes.NewReader(data)
	for reader.Len() > 0 {
		var subHeader [6]byte
		if _, err := io.ReadFull(reader, subHeader[:]); err != nil {
			return "", false
		}
		subType := string(subHeader[0:4])
		subSize := binary.LittleEndian.Uint16(subHeader[4:6])
		subData := make([]byte, subSize)
		if _, err := io.ReadFull(reader, subData); err != nil {
			return "", false
		}
		if subType == "EDID" {
			return readNullTerminated(subData), true
		}
	}
	return "", false
}

func readNullTerminated(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
