package qaclient

import (
	"bytes"
	"encoding/json"
	"path"
	"strconv"
	"time"

	"github.com/Rrens/docqa/internal/domain"
)

// flexID is an identifier the service may encode as a number or a string
type flexID string

func (id flexID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

type documentDTO struct {
	ID         flexID    `json:"id"`
	File       string    `json:"file"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (d documentDTO) ref() domain.DocumentRef {
	name := d.Filename
	if name == "" && d.File != "" {
		name = path.Base(d.File)
	}
	return domain.DocumentRef{
		ID:         string(d.ID),
		Filename:   name,
		UploadedAt: d.UploadedAt,
	}
}
