// Package contract defines the uploaded contract document aggregate.
// Document bytes live in object storage; the rows here carry metadata,
// parsed text, and soft-delete state.
package contract

import (
	"time"
)

// FileType enumerates the accepted upload formats.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeDOC  FileType = "doc"
)

// ParseFileType maps a lowercase file extension (without the dot) to a
// FileType.  Unsupported extensions return false.
func ParseFileType(ext string) (FileType, bool) {
	switch FileType(ext) {
	case FileTypePDF, FileTypeDOCX, FileTypeDOC:
		return FileType(ext), true
	default:
		return "", false
	}
}

// Contract is one uploaded contract document.  FileHash is the SHA-256 of
// the raw bytes and doubles as the duplicate-upload check.  ObjectKey is the
// document's key in object storage.
type Contract struct {
	ID               string                 `json:"id"`
	Filename         string                 `json:"filename"`
	OriginalFilename string                 `json:"original_filename"`
	ObjectKey        string                 `json:"object_key"`
	FileType         FileType               `json:"file_type"`
	FileSizeBytes    int64                  `json:"file_size_bytes"`
	FileHash         string                 `json:"file_hash"`
	PageCount        int                    `json:"page_count,omitempty"`
	ExtractedText    string                 `json:"-"`
	DocumentMetadata map[string]interface{} `json:"document_metadata,omitempty"`
	UploadedAt       time.Time              `json:"uploaded_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	IsDeleted        bool                   `json:"-"`
	DeletedAt        *time.Time             `json:"-"`
}

// HasText reports whether the document's text has been parsed; extraction
// jobs cannot run without it.
func (c *Contract) HasText() bool {
	return c.ExtractedText != ""
}

// Version tracks one revision of a contract document.
type Version struct {
	ID                string    `json:"id"`
	ContractID        string    `json:"contract_id"`
	VersionNumber     int       `json:"version_number"`
	ParentVersionID   string    `json:"parent_version_id,omitempty"`
	ObjectKey         string    `json:"object_key"`
	FileHash          string    `json:"file_hash"`
	ChangeDescription string    `json:"change_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
