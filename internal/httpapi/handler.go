// Package httpapi serves the user directory REST endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"userdir/internal/adapters/exports"
	"userdir/pkg/domain"
)

// Directory exposes the CRUD operations served over HTTP.
type Directory interface {
	ListUsers() []domain.User
	CreateUser(ctx context.Context, draft domain.UserDraft) (domain.User, domain.Result, error)
	UpdateUser(ctx context.Context, id string, draft domain.UserDraft) (domain.User, domain.Result, error)
	DeleteUser(ctx context.Context, id string) (domain.User, domain.Result, error)
}

// ExportRunner runs and recalls directory exports.
type ExportRunner interface {
	Run(ctx context.Context, format exports.Format) (exports.Record, error)
	List() []exports.Record
	Get(id string) (exports.Record, bool)
}

// Handler provides HTTP access to the user directory.
type Handler struct {
	Directory Directory
	Exports   ExportRunner
}

// NewHandler constructs a directory HTTP handler.
func NewHandler(d Directory) *Handler {
	return &Handler{Directory: d}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Directory == nil {
		writeError(w, http.StatusInternalServerError, "directory not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/users":
		h.handleUsers(w, r)
	case strings.HasPrefix(path, "/api/users/"):
		h.handleUser(w, r, strings.TrimPrefix(path, "/api/users/"))
	case path == "/api/exports" || strings.HasPrefix(path, "/api/exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	case path == "/api/health":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "user directory is running"})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users := h.Directory.ListUsers()
		if users == nil {
			users = []domain.User{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var draft domain.UserDraft
		if !decodeDraft(w, r, &draft) {
			return
		}
		created, _, err := h.Directory.CreateUser(r.Context(), draft)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var draft domain.UserDraft
		if !decodeDraft(w, r, &draft) {
			return
		}
		updated, _, err := h.Directory.UpdateUser(r.Context(), id, draft)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		deleted, _, err := h.Directory.DeleteUser(r.Context(), id)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully", "user": deleted})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type exportCreateRequest struct {
	Format string `json:"format"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/exports" {
		switch r.Method {
		case http.MethodGet:
			records := h.Exports.List()
			if records == nil {
				records = []exports.Record{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"exports": records})
		case http.MethodPost:
			var req exportCreateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
				writeError(w, http.StatusBadRequest, "invalid export request payload")
				return
			}
			format := exports.Format(strings.ToLower(strings.TrimSpace(req.Format)))
			if format == "" {
				format = exports.FormatJSON
			}
			if format != exports.FormatJSON && format != exports.FormatCSV {
				writeError(w, http.StatusBadRequest, "unsupported export format")
				return
			}
			record, err := h.Exports.Run(r.Context(), format)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/exports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func decodeDraft(w http.ResponseWriter, r *http.Request, draft *domain.UserDraft) bool {
	if err := json.NewDecoder(r.Body).Decode(draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// writeDirectoryError maps domain errors onto API statuses: rule violations
// become 400 with the violation message, missing users become 404.
func writeDirectoryError(w http.ResponseWriter, err error) {
	var notFound domain.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		writeError(w, http.StatusBadRequest, violation.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
