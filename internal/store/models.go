// Package store persists the crawled mod/plugin graph to PostgreSQL.
//
// Every insert path is an upsert: ON CONFLICT on the entity's natural key,
// updating only mutable columns and returning the full row so callers obtain
// database-assigned surrogate ids without a second round trip.
package store

import "time"

// BatchSize bounds the number of rows sent per multi-row insert statement.
const BatchSize = 50

// Game is a Nexus game domain (e.g. "skyrimspecialedition").
type Game struct {
	ID          int32
	Name        string
	NexusGameID int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Mod is a single Nexus mod page.
type Mod struct {
	ID                  int32
	NexusModID          int32
	GameID              int32
	Name                string
	AuthorName          string
	AuthorID            int32
	CategoryName        *string
	CategoryID          *int32
	Description         *string
	ThumbnailLink       *string
	IsTranslation       bool
	FirstUploadAt       time.Time
	LastUpdateAt        time.Time
	LastUpdatedFilesAt  *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UnsavedMod is the shape of a Mod before it has been assigned a surrogate id.
type UnsavedMod struct {
	NexusModID    int32
	GameID        int32
	Name          string
	AuthorName    string
	AuthorID      int32
	CategoryName  *string
	CategoryID    *int32
	Description   *string
	ThumbnailLink *string
	IsTranslation bool
	FirstUploadAt time.Time
	LastUpdateAt  time.Time
}

// File is one downloadable file attached to a Mod.
type File struct {
	ID                      int32
	NexusFileID             int32
	ModID                   int32
	Name                    string
	FileName                string
	Category                *string
	Version                 *string
	ModVersion              *string
	Size                    int64
	UploadedAt              time.Time
	HasDownloadLink         bool
	DownloadedAt            *time.Time
	HasPlugin               bool
	UnableToExtractPlugins  bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// UnsavedFile is the shape of a File before insertion.
type UnsavedFile struct {
	NexusFileID int32
	ModID       int32
	Name        string
	FileName    string
	Category    *string
	Version     *string
	ModVersion  *string
	Size        int64
	UploadedAt  time.Time
}

// Plugin is a single .esp/.esm/.esl extracted from a File's archive.
type Plugin struct {
	ID          int32
	FileID      int32
	ModID       int32
	Hash        int64
	Name        string
	FileName    string
	FilePath    string
	Size        int64
	Version     float64
	Author      *string
	Description *string
	Masters     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UnsavedPlugin is the shape of a Plugin before insertion.
type UnsavedPlugin struct {
	FileID      int32
	ModID       int32
	Hash        int64
	Name        string
	FileName    string
	FilePath    string
	Size        int64
	Version     float64
	Author      *string
	Description *string
	Masters     []string
}

// World is a worldspace record, keyed by the (form_id, master) pair decoded
// from a plugin's form-id.
type World struct {
	ID        int32
	FormID    int32
	Master    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnsavedWorld is the shape of a World before insertion.
type UnsavedWorld struct {
	FormID int32
	Master string
}

// Cell is a cell record. WorldID is nil for interior cells.
type Cell struct {
	ID           int32
	FormID       int32
	Master       string
	WorldID      *int32
	X            *int32
	Y            *int32
	IsPersistent bool
	IsBaseGame   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UnsavedCell is the shape of a Cell before insertion.
type UnsavedCell struct {
	FormID       int32
	Master       string
	WorldID      *int32
	X            *int32
	Y            *int32
	IsPersistent bool
	IsBaseGame   bool
}

// PluginWorld joins a Plugin to a World it references.
type PluginWorld struct {
	ID        int32
	PluginID  int32
	WorldID   int32
	EditorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnsavedPluginWorld is the shape of a PluginWorld before insertion.
type UnsavedPluginWorld struct {
	PluginID int32
	WorldID  int32
	EditorID string
}

// PluginCell joins a Plugin to a Cell it references. FileID and ModID are
// denormalised onto the row for query acceleration and must be written
// consistently at insert time.
type PluginCell struct {
	ID        int32
	PluginID  int32
	CellID    int32
	FileID    int32
	ModID     int32
	EditorID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnsavedPluginCell is the shape of a PluginCell before insertion.
type UnsavedPluginCell struct {
	PluginID int32
	CellID   int32
	FileID   int32
	ModID    int32
	EditorID *string
}
