package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/oapi-codegen/runtime"
	"github.com/spf13/afero"

	"github.com/kiesman99/tile_extractor/internal/extract"
	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// DefaultMaxUpload is the largest accepted tileset body in bytes.
const DefaultMaxUpload = 64 << 20

// DefaultMaxPixels is the largest accepted tileset area, checked against the
// image header before decoding.
const DefaultMaxPixels = 1 << 25

// Error codes returned in ErrorResponse.Error.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeDecode     = "DECODE_ERROR"
	CodeTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeTimeout    = "TIMEOUT"
	CodeInternal   = "INTERNAL_ERROR"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Config holds the tunables of the extraction endpoint.
type Config struct {
	MaxUpload int64
	MaxPixels int64
	Workers   int
}

// Server serves tile extraction over HTTP.
type Server struct {
	startTime time.Time
	version   string
	logger    hclog.Logger
	config    Config
}

// NewServer creates a new server instance
func NewServer(version string, logger hclog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		logger:    logger,
		config:    cfg,
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Post("/extract", s.ExtractTiles)
}

// Handler returns the complete router with middleware, the API mounted at
// /api/v1 and a legacy /health redirect.
func (s *Server) Handler(timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	r.Route("/api/v1", s.Routes)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encoding health response", "error", err)
	}
}

// ExtractTiles cuts the tileset in the request body and responds with a zip
// archive of the emitted tiles.
func (s *Server) ExtractTiles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	opts, err := s.bindOptions(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeValidation, err.Error(), requestID)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("tileset larger than %d bytes", tooLarge.Limit), requestID)
			return
		}
		s.writeErrorResponse(w, http.StatusBadRequest, CodeValidation, "cannot read request body", requestID)
		return
	}

	img, err := tile.DecodeImageLimit(data, s.config.MaxPixels)
	if errors.Is(err, tile.ErrImageTooLarge) {
		s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, CodeTooLarge, err.Error(), requestID)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, CodeDecode,
			fmt.Sprintf("cannot decode tileset: %v", err), requestID)
		return
	}

	fs := afero.NewMemMapFs()
	logger := s.logger.With("request_id", requestID)
	report, err := extract.New(fs, tile.NewPNGWriter(fs), logger, opts).
		Process(r.Context(), img, extract.NewColorSet())
	if err != nil {
		s.handleExtractError(w, err, requestID)
		return
	}

	archive, err := zipFiles(fs, report.Files())
	if err != nil {
		logger.Error("building archive", "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, CodeInternal, "Internal server error", requestID)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="tiles.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Tiles-Total", strconv.Itoa(report.Grid.Count()))
	w.Header().Set("X-Tiles-Saved", strconv.Itoa(report.Saved()))
	w.Header().Set("X-Tiles-Skipped", strconv.Itoa(report.Skipped()))
	w.Header().Set("X-Tiles-Failed", strconv.Itoa(report.Failed()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		logger.Error("writing response", "error", err)
	}
}

// bindOptions reads tile_width and tile_height from the query string.
func (s *Server) bindOptions(r *http.Request) (extract.Options, error) {
	opts := extract.Options{Workers: s.config.Workers}
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "tile_width", query, &opts.TileWidth); err != nil {
		return opts, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "tile_height", query, &opts.TileHeight); err != nil {
		return opts, err
	}

	return opts, opts.Validate()
}

func (s *Server) handleExtractError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, tile.ErrInvalidArgument):
		s.writeErrorResponse(w, http.StatusBadRequest, CodeValidation, err.Error(), requestID)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, CodeTimeout, "Tile extraction timed out", requestID)
	default:
		s.logger.Error("extraction failed", "request_id", requestID, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, CodeInternal, "Internal server error", requestID)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message, requestID string) {
	response := ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
