package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/ModLibrary/pkg/logger"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/notes"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service modlibrary.Service
	config  *ServerConfig
	log     modlibrary.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	SampleRate     int
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service modlibrary.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "ModLibrary API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"search":       "GET /api/modules",
			"addModule":    "POST /api/modules",
			"scan":         "POST /api/scan",
			"maintain":     "POST /api/maintain",
			"getModule":    "GET /api/module?path=",
			"editModule":   "PUT /api/module?path=",
			"removeModule": "DELETE /api/module?path=",
			"fingerprint":  "GET /api/module/fingerprint?path=",
			"playlist":     "GET /api/playlist",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rs, err := s.service.Search(r.Context(), query.Criteria{ShowAll: true})
	if err != nil {
		s.log.Errorf("Failed to count modules: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		ModuleCount:  rs.Len(),
		SampleRate:   s.config.SampleRate,
	})
}

// parseCriteria builds a search from query parameters. Ranges are given as
// min/max pairs; sizes in bytes, lengths in seconds, dates as YYYY-MM-DD.
func parseCriteria(v url.Values) (query.Criteria, error) {
	c := query.Criteria{
		Text:    v.Get("text"),
		ShowAll: v.Get("all") == "true" || v.Get("all") == "1",
	}
	if c.Text != "" {
		fields := v.Get("fields")
		if fields == "" {
			fields = "filename,title"
		}
		c.Fields = query.ParseFields(fields)
	}

	if lo, hi := v.Get("size_min"), v.Get("size_max"); lo != "" || hi != "" {
		low, err := parseInt(lo, 0)
		if err != nil {
			return c, fmt.Errorf("size_min: %w", err)
		}
		high, err := parseInt(hi, 1<<62)
		if err != nil {
			return c, fmt.Errorf("size_max: %w", err)
		}
		c.Size = query.Between(low, high)
	}
	if lo, hi := v.Get("length_min"), v.Get("length_max"); lo != "" || hi != "" {
		low, err := parseInt(lo, 0)
		if err != nil {
			return c, fmt.Errorf("length_min: %w", err)
		}
		high, err := parseInt(hi, 1<<31)
		if err != nil {
			return c, fmt.Errorf("length_max: %w", err)
		}
		c.Duration = query.Between(time.Duration(low)*time.Second, time.Duration(high)*time.Second)
	}
	var err error
	if c.FileDate, err = parseDates(v.Get("date_from"), v.Get("date_to")); err != nil {
		return c, fmt.Errorf("date: %w", err)
	}
	if c.ReleaseDate, err = parseDates(v.Get("released_from"), v.Get("released_to")); err != nil {
		return c, fmt.Errorf("released: %w", err)
	}

	if c.Melodies, err = notes.ParseMelodies(v.Get("melody")); err != nil {
		return c, err
	}
	if fp := strings.TrimSpace(v.Get("fingerprint")); fp != "" {
		blob, err := fingerprint.ParsePrintable(fp)
		if err != nil {
			return c, err
		}
		if c.Fingerprint, err = fingerprint.Decode(blob); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseInt(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseDates(from, to string) (query.TimeRange, error) {
	if from == "" && to == "" {
		return query.TimeRange{}, nil
	}
	r := query.BetweenTimes(time.Unix(0, 0).UTC(), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	var err error
	if from != "" {
		if r.From, err = time.Parse(time.DateOnly, from); err != nil {
			return r, err
		}
	}
	if to != "" {
		if r.To, err = time.Parse(time.DateOnly, to); err != nil {
			return r, err
		}
		r.To = r.To.Add(24*time.Hour - time.Second)
	}
	return r, nil
}

// search runs the request's criteria and applies its sort parameters.
func (s *Server) search(r *http.Request) (*query.ResultSet, []query.Result, int, error) {
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	key, err := query.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}

	rs, err := s.service.Search(r.Context(), crit)
	if err != nil {
		s.log.Errorf("Search failed: %v", err)
		return nil, nil, http.StatusInternalServerError, errors.New("search failed")
	}
	desc := r.URL.Query().Get("desc") == "true"
	return rs, query.Sorted(rs.Results, key, desc), http.StatusOK, nil
}

// handleSearch handles GET /api/modules
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rs, results, code, err := s.search(r)
	if err != nil {
		s.respondError(w, code, err.Error())
		return
	}

	dtos := make([]EntryDTO, len(results))
	for i, res := range results {
		dtos[i] = newEntryDTO(res)
	}
	s.respondJSON(w, http.StatusOK, SearchResponse{
		Modules: dtos,
		Count:   len(dtos),
		Scored:  rs.Scored,
	})
}

// handlePlaylist handles GET /api/playlist
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	_, results, code, err := s.search(r)
	if err != nil {
		s.respondError(w, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/x-scpls")
	w.Header().Set("Content-Disposition", `attachment; filename="modules.pls"`)
	if err := s.service.ExportPlaylist(w, results); err != nil {
		s.log.Errorf("Failed to write playlist: %v", err)
	}
}

// handleAddModule handles POST /api/modules
func (s *Server) handleAddModule(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	res, err := s.service.AddModule(ctx, req.Path)
	resp := AddModuleResponse{Path: req.Path, Result: res.String()}
	if err != nil {
		resp.Error = err.Error()
	}

	status := http.StatusOK
	switch res {
	case modlibrary.Added:
		status = http.StatusCreated
	case modlibrary.IOError:
		status = http.StatusNotFound
	case modlibrary.NotAdded:
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, resp)
}

// handleScan handles POST /api/scan
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.service.ScanFolder(r.Context(), req.Path, nil)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleMaintain handles POST /api/maintain
func (s *Server) handleMaintain(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Maintain(r.Context(), nil)
	if err != nil {
		s.log.Errorf("Maintenance failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Maintenance failed")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) respondLookupError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("%s is not in the library", path))
		return
	}
	s.log.Errorf("Lookup of %s failed: %v", path, err)
	s.respondError(w, http.StatusInternalServerError, "Lookup failed")
}

// handleGetModule handles GET /api/module?path=
func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request, path string) {
	rec, err := s.service.GetModule(r.Context(), path)
	if err != nil {
		s.respondLookupError(w, path, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newModuleDTO(rec))
}

// handleEditModule handles PUT /api/module?path=
func (s *Server) handleEditModule(w http.ResponseWriter, r *http.Request, path string) {
	var req CustomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.service.UpdateCustom(r.Context(), path, req.Artist, req.PersonalComments); err != nil {
		s.respondLookupError(w, path, err)
		return
	}
	s.handleGetModule(w, r, path)
}

// handleRemoveModule handles DELETE /api/module?path=
func (s *Server) handleRemoveModule(w http.ResponseWriter, r *http.Request, path string) {
	removed, err := s.service.RemoveModule(r.Context(), path)
	if err != nil {
		s.log.Errorf("Failed to remove %s: %v", path, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to remove module")
		return
	}
	if !removed {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("%s is not in the library", path))
		return
	}
	s.respondJSON(w, http.StatusOK, RemoveResponse{
		Message: "Module removed successfully",
		Path:    path,
	})
}

// handleFingerprint handles GET /api/module/fingerprint?path=
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	fp, err := s.service.GetFingerprint(r.Context(), path)
	if err != nil {
		s.respondLookupError(w, path, err)
		return
	}
	s.respondJSON(w, http.StatusOK, FingerprintResponse{Path: path, Fingerprint: fp})
}

// handleModules routes requests to /api/modules
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearch(w, r)
	case http.MethodPost:
		s.handleAddModule(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleModule routes requests to /api/module
func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetModule(w, r, path)
	case http.MethodPut:
		s.handleEditModule(w, r, path)
	case http.MethodDelete:
		s.handleRemoveModule(w, r, path)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// postOnly rejects every method but POST
func (s *Server) postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	}
}
