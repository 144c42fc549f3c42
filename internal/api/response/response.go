// Package response writes the JSON bodies, downloads and problem documents
// of the routedesk API. Every response echoes the request id.
package response

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/routedesk/routedesk/internal/api/middleware"
	"github.com/routedesk/routedesk/internal/api/models"
)

func setRequestID(w http.ResponseWriter, r *http.Request) string {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	return requestID
}

// JSON writes data as a JSON body with the given status. A nil data writes
// no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created answers 201 for a new result session, pointing Location at it.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// Accepted answers 202 for work still in progress, such as a routes map
// being rendered. Location is where to poll.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusAccepted, data)
}

// File writes data as a download named filename. Exports are single-use,
// so the download must not be cached.
func File(w http.ResponseWriter, r *http.Request, contentType, filename string, data []byte) {
	setRequestID(w, r)
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	if problem.TraceID == "" {
		problem.TraceID = setRequestID(w, r)
	}
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(requestID(r), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(requestID(r), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

// Busy writes a 503 problem asking the client to retry after wait.
func Busy(w http.ResponseWriter, r *http.Request, detail string, wait time.Duration) {
	Error(w, r, models.NewServiceUnavailable(requestID(r), detail).RetryAfter(wait))
}

// SearchEngineError writes a 502 problem for a failed route search.
func SearchEngineError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewSearchEngineError(requestID(r), detail))
}

// RenderError writes a 502 problem for a failed map or chart render.
func RenderError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewRenderError(requestID(r), detail))
}
