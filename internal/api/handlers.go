// Package api exposes the note store over HTTP with JSON bodies and
// Go 1.22 mux routing patterns.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kuitang/page-notes/internal/errs"
	"github.com/kuitang/page-notes/internal/note"
)

// Handler wraps the note store and editor session with HTTP handlers.
type Handler struct {
	store   *note.Store
	session *note.Session
}

// NewHandler creates an API handler over the given store and session.
func NewHandler(store *note.Store, session *note.Session) *Handler {
	return &Handler{store: store, session: session}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /notes", h.ListNotes)
	mux.HandleFunc("POST /notes", h.CreateNote)
	mux.HandleFunc("GET /notes/{id}", h.GetNote)
	mux.HandleFunc("PATCH /notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /notes/{id}", h.DeleteNote)
	mux.HandleFunc("POST /notes/import", h.ImportNote)
	mux.HandleFunc("GET /notes/{id}/download", h.DownloadNote)
	mux.HandleFunc("POST /notes/{id}/unlock", h.UnlockNote)
	mux.HandleFunc("POST /notes/{id}/lock", h.LockNote)
	mux.HandleFunc("PUT /notes/{id}/password", h.SetPassword)
	mux.HandleFunc("GET /quota", h.GetQuota)
	mux.HandleFunc("POST /render", h.RenderPreview)
	mux.HandleFunc("POST /session/page-url", h.SetPageURL)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

// ListNotes handles GET /notes. Notes come back newest first; gated, locked
// notes keep their titles but carry no content.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes := h.store.All()
	quota := h.store.Quota()
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"quota": quotaPayload(quota),
	})
}

// CreateNoteRequest is the optional body for POST /notes.
type CreateNoteRequest struct {
	URL string `json:"url"`
}

// CreateNote handles POST /notes. The new note is stamped with the supplied
// page URL, falling back to the session's last delivered one.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
	}
	pageURL := req.URL
	if pageURL == "" {
		pageURL = h.session.PageURL()
	}

	n, err := h.store.Create(pageURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNoteRequest is the body for PATCH /notes/{id}. Absent fields are
// left untouched.
type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// UpdateNoteResponse reports the stored note plus whether the title was
// clamped.
type UpdateNoteResponse struct {
	Note           note.Note `json:"note"`
	TitleTruncated bool      `json:"title_truncated"`
}

// UpdateNote handles PATCH /notes/{id}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	res, err := h.store.Update(r.PathValue("id"), note.Patch{Title: req.Title, Content: req.Content})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateNoteResponse{Note: res.Note, TitleTruncated: res.TitleTruncated})
}

// DeleteNote handles DELETE /notes/{id}. A gated note must be unlocked
// first via POST /notes/{id}/unlock.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.store.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportNoteRequest is the body for POST /notes/import.
type ImportNoteRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ImportNote handles POST /notes/import.
func (h *Handler) ImportNote(w http.ResponseWriter, r *http.Request) {
	var req ImportNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	pageURL := req.URL
	if pageURL == "" {
		pageURL = h.session.PageURL()
	}

	res, err := h.store.ImportFromText(req.Name, req.Text, pageURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UpdateNoteResponse{Note: res.Note, TitleTruncated: res.TitleTruncated})
}

// DownloadNote handles GET /notes/{id}/download: the note as a markdown
// attachment with a UTF-8 byte order mark.
func (h *Handler) DownloadNote(w http.ResponseWriter, r *http.Request) {
	filename, data, err := h.store.Export(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// UnlockRequest is the body for POST /notes/{id}/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// UnlockNote handles POST /notes/{id}/unlock: password verification. On
// success the note stays readable until it is re-locked.
func (h *Handler) UnlockNote(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := h.store.Verify(r.PathValue("id"), req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockNote handles POST /notes/{id}/lock: explicit re-lock. Idempotent.
func (h *Handler) LockNote(w http.ResponseWriter, r *http.Request) {
	h.store.Lock(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// SetPasswordRequest is the body for PUT /notes/{id}/password. Setting a
// first password leaves current empty; removing one leaves new and confirm
// empty.
type SetPasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
	Confirm string `json:"confirm"`
}

// SetPassword handles PUT /notes/{id}/password.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := h.store.SetPassword(r.PathValue("id"), req.Current, req.New, req.Confirm); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetQuota handles GET /quota.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, quotaPayload(h.store.Quota()))
}

// RenderRequest is the body for POST /render.
type RenderRequest struct {
	Content string `json:"content"`
}

// RenderPreview handles POST /render: markdown in, sanitized HTML fragment
// out.
func (h *Handler) RenderPreview(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"html": string(note.RenderPreview(req.Content)),
	})
}

// PageURLRequest is the body for POST /session/page-url.
type PageURLRequest struct {
	URL string `json:"url"`
}

// SetPageURL handles POST /session/page-url: the hosting page reports its
// current URL so new notes can be stamped with it.
func (h *Handler) SetPageURL(w http.ResponseWriter, r *http.Request) {
	var req PageURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	h.session.SetPageURL(req.URL)
	w.WriteHeader(http.StatusNoContent)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func quotaPayload(q note.QuotaSnapshot) map[string]any {
	return map[string]any{
		"note_count":      q.NoteCount,
		"total_bytes":     q.TotalBytes,
		"used_percentage": q.UsedPercentage,
		"formatted_size":  note.FormatSize(q.TotalBytes),
		"pressure":        q.Pressure(),
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  errs.Code `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a domain sentinel onto the error taxonomy and
// writes the corresponding status.
func writeDomainError(w http.ResponseWriter, err error) {
	code := domainCode(err)
	writeJSON(w, errs.HTTPStatus(code), ErrorResponse{Error: err.Error(), Code: code})
}

func domainCode(err error) errs.Code {
	switch {
	case errors.Is(err, note.ErrNotFound):
		return errs.NotFound
	case errors.Is(err, note.ErrQuotaExceeded):
		return errs.ResourceExhausted
	case errors.Is(err, note.ErrLocked),
		errors.Is(err, note.ErrLockMismatch),
		errors.Is(err, note.ErrWrongCurrentPassword):
		return errs.PermissionDenied
	case errors.Is(err, note.ErrPasswordTooShort),
		errors.Is(err, note.ErrPasswordConfirmMismatch),
		errors.Is(err, note.ErrUnsupportedFileType),
		errors.Is(err, note.ErrEmptyFileSelection):
		return errs.InvalidArgument
	case errors.Is(err, note.ErrStorageWrite):
		return errs.Unavailable
	default:
		return errs.Internal
	}
}
