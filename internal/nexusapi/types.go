package nexusapi

// FilesResponse is the decoded body of GET .../files.json.
type FilesResponse struct {
	Files []APIFile `json:"files"`
}

// APIFile is one entry in a FilesResponse.
type APIFile struct {
	FileID             int     `json:"file_id"`
	Name               string  `json:"name"`
	FileName           string  `json:"file_name"`
	Category           *string `json:"category_name"`
	Version            *string `json:"version"`
	ModVersion         *string `json:"mod_version"`
	SizeInBytes        *int64  `json:"size_in_bytes"`
	SizeKB             *int64  `json:"size_kb"`
	ContentPreviewLink string  `json:"content_preview_link"`
	UploadedTimestamp  int64   `json:"uploaded_timestamp"`
}

// Size resolves the file's size in bytes, preferring the explicit
// size_in_bytes field and falling back to size_kb * 1000.
func (f APIFile) Size() int64 {
	if f.SizeInBytes != nil {
		return *f.SizeInBytes
	}
	if f.SizeKB != nil {
		return *f.SizeKB * 1000
	}
	return 0
}

// UserInfo is the decoded body of GET .../users/validate.json: the account
// the configured API key belongs to and its membership flags.
type UserInfo struct {
	UserID      int    `json:"user_id"`
	Name        string `json:"name"`
	IsPremium   bool   `json:"is_premium"`
	IsSupporter bool   `json:"is_supporter"`
}

// DownloadLink is one entry in the download_link.json array response.
type DownloadLink struct {
	URI string `json:"URI"`
}

// ModDetail is the decoded body of GET .../mods/{id}.json.
type ModDetail struct {
	Name            string  `json:"name"`
	Summary         *string `json:"summary"`
	Author          string  `json:"author"`
	UploaderName    string  `json:"uploaded_by"`
	UploaderID      int     `json:"uploaded_users_profile_url"`
	CategoryID      *int    `json:"category_id"`
	PictureURL      *string `json:"picture_url"`
	CreatedTime     int64   `json:"created_timestamp"`
	UpdatedTime     int64   `json:"updated_timestamp"`
	ContainsAdult   bool    `json:"contains_adult_content"`
}

// MetadataNode is a node in the content-preview tree returned for a file
// with a content_preview_link. "has plugin" is true iff some descendant
// file node's name ends in .esp/.esm/.esl.
type MetadataNode struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Children []MetadataNode `json:"children"`
}

// HasPlugin reports whether this node or any descendant is a plugin file.
func (n MetadataNode) HasPlugin() bool {
	if n.Type == "file" && isPluginName(n.Name) {
		return true
	}
	for _, child := range n.Children {
		if child.HasPlugin() {
			return true
		}
	}
	return false
}

func isPluginName(name string) bool {
	for _, ext := range []string{".esp", ".esm", ".esl"} {
		if len(name) >= len(ext) && hasSuffixFold(name, ext) {
			return true
		}
	}
	return false
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
