package domain

import (
	"io"
	"time"
)

// DocumentRef references a document owned by the QA service
type DocumentRef struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Upload is a file payload handed to the QA service
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// BindingSnapshot is a read-only view of the document binding
type BindingSnapshot struct {
	Current *DocumentRef  `json:"current"`
	Catalog []DocumentRef `json:"catalog"`
}
