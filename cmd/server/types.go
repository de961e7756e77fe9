package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/notes"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
)

// PathRequest is the request body for POST /api/modules and POST /api/scan
type PathRequest struct {
	Path string `json:"path"`
}

func (r *PathRequest) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// CustomRequest is the request body for PUT /api/module
type CustomRequest struct {
	Artist           string `json:"artist"`
	PersonalComments string `json:"personal_comments"`
}

// AddModuleResponse reports the outcome of indexing one file
type AddModuleResponse struct {
	Path   string `json:"path"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// EntryDTO is one search result
type EntryDTO struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	FileSize int64     `json:"file_size"`
	Size     string    `json:"size"`
	FileDate time.Time `json:"file_date"`
	Match    *int      `json:"match,omitempty"`
}

func newEntryDTO(r query.Result) EntryDTO {
	dto := EntryDTO{
		Path:     r.Path,
		Title:    r.DisplayTitle(),
		FileSize: r.FileSize,
		Size:     r.SizeString(),
		FileDate: r.FileDate,
	}
	if r.Scored {
		match := r.Match
		dto.Match = &match
	}
	return dto
}

// SearchResponse is the response for GET /api/modules
type SearchResponse struct {
	Modules []EntryDTO `json:"modules"`
	Count   int        `json:"count"`
	Scored  bool       `json:"scored"`
}

// ModuleDTO is the full record returned by GET /api/module
type ModuleDTO struct {
	Path             string    `json:"path"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist,omitempty"`
	Format           string    `json:"format"`
	FileSize         int64     `json:"file_size"`
	FileDate         time.Time `json:"file_date"`
	EditDate         time.Time `json:"edit_date,omitzero"`
	DurationMs       int64     `json:"duration_ms"`
	Channels         int       `json:"channels"`
	Patterns         int       `json:"patterns"`
	Orders           int       `json:"orders"`
	SubSongs         int       `json:"sub_songs"`
	Samples          int       `json:"samples"`
	Instruments      int       `json:"instruments"`
	SampleText       string    `json:"sample_text,omitempty"`
	InstrumentText   string    `json:"instrument_text,omitempty"`
	Comments         string    `json:"comments,omitempty"`
	PersonalComments string    `json:"personal_comments,omitempty"`
	Melody           string    `json:"melody,omitempty"`
}

func newModuleDTO(rec *modlibrary.Record) ModuleDTO {
	return ModuleDTO{
		Path:             rec.Path,
		Title:            rec.DisplayTitle(),
		Artist:           rec.Artist,
		Format:           rec.Format,
		FileSize:         rec.FileSize,
		FileDate:         rec.FileDate,
		EditDate:         rec.EditDate,
		DurationMs:       rec.Duration.Milliseconds(),
		Channels:         rec.Channels,
		Patterns:         rec.Patterns,
		Orders:           rec.Orders,
		SubSongs:         rec.SubSongs,
		Samples:          rec.Samples,
		Instruments:      rec.Instruments,
		SampleText:       rec.SampleText,
		InstrumentText:   rec.InstrumentText,
		Comments:         rec.Comments,
		PersonalComments: rec.PersonalComments,
		Melody:           notes.Format(rec.NoteData),
	}
}

// FingerprintResponse is the response for GET /api/module/fingerprint
type FingerprintResponse struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// RemoveResponse is the response for DELETE /api/module
type RemoveResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// MetricsResponse provides server health and library size
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	ModuleCount  int    `json:"module_count"`
	SampleRate   int    `json:"sample_rate"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
