package convertapi

import (
	"net/url"
	"strings"
)

// UploadedFile is a file resource held by the service: an uploaded input, a
// referenced remote file or a conversion result.
type UploadedFile struct {
	FileID   string `json:"FileId"`
	FileName string `json:"FileName"`
	FileExt  string `json:"FileExt"`
	FileSize int64  `json:"FileSize"`
	URL      string `json:"Url,omitempty"`
}

// identity is the deduplication key: the FileId when present, otherwise the
// normalised URL. Both are compared case-insensitively. Empty means the file
// cannot be addressed at all.
func (f UploadedFile) identity() string {
	if id := strings.TrimSpace(f.FileID); id != "" {
		return strings.ToLower(id)
	}
	if f.URL == "" {
		return ""
	}
	if u, err := url.Parse(f.URL); err == nil && u.IsAbs() {
		return strings.ToLower(u.String())
	}
	return strings.ToLower(strings.TrimSpace(f.URL))
}

// ConversionResponse is the service reply to a conversion
type ConversionResponse struct {
	ConversionCost int            `json:"ConversionCost"`
	Files          []UploadedFile `json:"Files"`

	// UploadedInputFiles lists the inputs uploaded or referenced by the request
	// this response answers. Filled in by the client, never by the service.
	UploadedInputFiles []UploadedFile `json:"-"`
}

// FileCount returns the number of result files
func (r *ConversionResponse) FileCount() int {
	if r == nil {
		return 0
	}
	return len(r.Files)
}

// User describes the account behind the API token
type User struct {
	Active              bool   `json:"Active"`
	FullName            string `json:"FullName"`
	Email               string `json:"Email"`
	SecondsLeft         int64  `json:"SecondsLeft"`
	ConversionsTotal    int64  `json:"ConversionsTotal"`
	ConversionsConsumed int64  `json:"ConversionsConsumed"`
}
