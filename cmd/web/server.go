package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/output"
	"rauw-tafel-designer/internal/ratelimit"
)

type server struct {
	designer *designer.Designer
	catalog  *catalog.Catalog
	out      *output.Writer
	logger   *slog.Logger

	maxUploadBytes int64
	requestTimeout time.Duration
	allowedOrigins []string

	listLimiter     *ratelimit.Limiter
	imagesLimiter   *ratelimit.Limiter
	generateLimiter *ratelimit.Limiter
}

type apiError struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Name      string            `json:"name"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

type categoryResponse struct {
	Category string   `json:"category"`
	Images   []string `json:"images"`
	Count    int      `json:"count"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	OutputURL string `json:"output_url"`
	Filename  string `json:"filename"`
	Message   string `json:"message"`
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /api/categories/{category}", s.limited(s.listLimiter, s.handleListImages))
	mux.HandleFunc("GET /api/images/{category}/{filename}", s.limited(s.imagesLimiter, s.handlePreviewImage))
	mux.HandleFunc("POST /api/generate", s.limited(s.generateLimiter, s.handleGenerate))
	mux.HandleFunc("GET /api/output/{filename}", s.handleOutput)

	return withLogging(withRecovery(withSecurityHeaders(withCORS(mux, s.allowedOrigins)), s.logger), s.logger)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Name:   "RAUW Tafel Designer API",
		Status: "operational",
		Endpoints: map[string]string{
			"list_images":    "GET /api/categories/{category}",
			"preview_image":  "GET /api/images/{category}/{filename}",
			"generate_table": "POST /api/generate",
			"get_result":     "GET /api/output/{filename}",
		},
	})
}

func (s *server) handleListImages(w http.ResponseWriter, r *http.Request) {
	rawCategory := r.PathValue("category")

	names, err := s.catalog.List(catalog.Category(rawCategory))
	switch {
	case errors.Is(err, catalog.ErrUnknownCategory):
		writeJSON(w, http.StatusNotFound, apiError{
			Error: fmt.Sprintf("invalid category %q, must be one of: %s", rawCategory, catalog.CategoryNames()),
		})
		return
	case errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, apiError{Error: "category directory not found"})
		return
	case err != nil:
		s.logger.Error("category listing failed", "category", rawCategory, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to list images"})
		return
	}

	cat, _ := catalog.Parse(rawCategory)
	writeJSON(w, http.StatusOK, categoryResponse{
		Category: string(cat),
		Images:   names,
		Count:    len(names),
	})
}

func (s *server) handlePreviewImage(w http.ResponseWriter, r *http.Request) {
	rawCategory := r.PathValue("category")
	filename := r.PathValue("filename")

	path, err := s.catalog.Resolve(catalog.Category(rawCategory), filename)
	switch {
	case errors.Is(err, catalog.ErrUnknownCategory):
		writeJSON(w, http.StatusNotFound, apiError{
			Error: fmt.Sprintf("invalid category %q, must be one of: %s", rawCategory, catalog.CategoryNames()),
		})
		return
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "image not found"})
		return
	case err != nil:
		s.logger.Error("image lookup failed", "category", rawCategory, "filename", filename, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load image"})
		return
	}

	http.ServeFile(w, r, path)
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiError{
				Error: fmt.Sprintf("file exceeds %dMB limit", s.maxUploadBytes>>20),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	refs := make([]designer.ImageRef, 0, 4)
	for _, cat := range catalog.Categories() {
		name := strings.TrimSpace(r.FormValue(string(cat)))
		if name == "" {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{
				Error: fmt.Sprintf("missing form field: %s", cat),
			})
			return
		}

		path, err := s.catalog.Resolve(cat, name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, apiError{
				Error: fmt.Sprintf("%s file not found: %s", cat, safeBase(name)),
			})
			return
		}
		refs = append(refs, designer.ImageRef{Path: path, Role: designer.RoleFor(cat)})
	}

	legs := 0
	if raw := strings.TrimSpace(r.FormValue("legs")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 || n > 4 {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: "legs must be 2, 3 or 4"})
			return
		}
		legs = n
	}

	req := designer.Request{Images: refs, Legs: legs}

	file, _, err := r.FormFile("room_photo")
	switch {
	case err == nil:
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read room photo"})
			return
		}

		path, cleanup, err := s.out.TempRoomFile(data)
		if err != nil {
			s.logger.Error("room photo temp write failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to store room photo"})
			return
		}
		defer cleanup()

		req.Images = append(req.Images, designer.ImageRef{Path: path, Role: designer.RoleRoom})
		req.WithRoom = true
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid room photo upload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.designer.Generate(ctx, req)
	switch {
	case errors.Is(err, designer.ErrInvalidRequest):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("table generation failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{
			Error: fmt.Sprintf("generation failed: %v", err),
		})
		return
	}

	first := result.Files[0]
	writeJSON(w, http.StatusOK, generateResponse{
		Success:   true,
		OutputURL: "/api/output/" + first.Name,
		Filename:  first.Name,
		Message:   "Table generated successfully",
	})
}

func (s *server) handleOutput(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	path, err := s.out.Path(filename)
	switch {
	case errors.Is(err, output.ErrBadName):
		writeJSON(w, http.StatusForbidden, apiError{Error: "access denied"})
		return
	case errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, apiError{Error: "output image not found"})
		return
	case err != nil:
		s.logger.Error("output lookup failed", "filename", filename, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load output image"})
		return
	}

	http.ServeFile(w, r, path)
}

func (s *server) limited(l *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, apiError{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func safeBase(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
