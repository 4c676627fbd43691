package models

import (
	"time"
)

const DefaultStoragePath = "Default"

// DocumentRecord is the catalog entry for a document file. FilePath is unique
// across the catalog.
type DocumentRecord struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	FilePath      string    `json:"file_path"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	PageCount     int       `json:"page_count"`
	DateCreated   string    `json:"date_created"`
	Correspondent string    `json:"correspondent,omitempty"`
	DocumentType  string    `json:"document_type,omitempty"`
	StoragePath   string    `json:"storage_path"`
	Tags          []string  `json:"tags"`
	Notes         string    `json:"notes,omitempty"`
	Checksum      string    `json:"checksum,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type DocumentFilter struct {
	Search       string
	DocumentType string
	Limit        int
	Offset       int
}

type CatalogStats struct {
	TotalDocuments int   `json:"total_documents"`
	TotalPages     int   `json:"total_pages"`
	TotalSize      int64 `json:"total_size"`
}
