package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"userdir/internal/adapters/exports"
	"userdir/internal/blob"
	"userdir/internal/core"
	"userdir/internal/infra/persistence/memory"
	"userdir/pkg/domain"
)

func newTestHandler(t *testing.T) (*Handler, *core.Service) {
	t.Helper()
	service := core.NewService(memory.NewStore(core.DefaultRulesEngine()))
	h := NewHandler(service)
	h.Exports = exports.New(service, blob.NewMemory())
	return h, service
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

const adaJSON = `{"name":"Ada","surname":"Lovelace","email":"ada@example.com","company":"AE","jobTitle":"Mathematician"}`

func TestListUsersEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Users []domain.User `json:"users"`
	}
	decodeBody(t, rec, &resp)
	if resp.Users == nil || len(resp.Users) != 0 {
		t.Fatalf("expected empty users array, got %v", resp.Users)
	}
}

func TestCreateUser(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users", adaJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.User
	decodeBody(t, rec, &created)
	if created.ID == "" || created.Name != "Ada" || created.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", created)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/users", "")
	var resp struct {
		Users []domain.User `json:"users"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Users) != 1 || resp.Users[0].ID != created.ID {
		t.Fatalf("list mismatch %+v", resp.Users)
	}
}

func TestCreateUserTrimsFields(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users",
		`{"name":"  Ada ","surname":" Lovelace","email":" ada@example.com ","company":" AE ","jobTitle":" Math "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.User
	decodeBody(t, rec, &created)
	if created.Name != "Ada" || created.Email != "ada@example.com" || created.JobTitle != "Math" {
		t.Fatalf("fields not trimmed: %+v", created)
	}
}

func TestCreateUserMissingField(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users",
		`{"name":"Ada","surname":"Lovelace","email":"ada@example.com","company":"AE","jobTitle":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "Missing required field: jobTitle" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodPost, "/api/users", adaJSON); rec.Code != http.StatusCreated {
		t.Fatalf("seed status %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/api/users",
		`{"name":"Other","surname":"Person","email":"ada@example.com","company":"Else","jobTitle":"Eng"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "Email already exists" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestCreateUserInvalidPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users", `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "invalid request payload" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestUpdateUserAppliesDraft(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users", adaJSON)
	var created domain.User
	decodeBody(t, rec, &created)

	rec = doJSON(t, h, http.MethodPut, "/api/users/"+created.ID,
		`{"name":"Ada","surname":"King","email":"ada@example.com","company":"AE","jobTitle":"Countess"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.User
	decodeBody(t, rec, &updated)
	if updated.ID != created.ID || updated.Surname != "King" || updated.JobTitle != "Countess" {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPut, "/api/users/u-404", adaJSON)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "User not found" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestDeleteUserReturnsAck(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users", adaJSON)
	var created domain.User
	decodeBody(t, rec, &created)

	rec = doJSON(t, h, http.MethodDelete, "/api/users/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message string      `json:"message"`
		User    domain.User `json:"user"`
	}
	decodeBody(t, rec, &resp)
	if resp.Message != "User deleted successfully" || resp.User.ID != created.ID {
		t.Fatalf("unexpected ack %+v", resp)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/users/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("unexpected health %v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodPatch, "/api/users", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("users status %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/users/u-1", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("user status %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/health", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("health status %d", rec.Code)
	}
}

func TestUnknownPath(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodGet, "/api/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestExportLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodPost, "/api/users", adaJSON); rec.Code != http.StatusCreated {
		t.Fatalf("seed status %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/exports", `{"format":"csv"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create export status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Export exports.Record `json:"export"`
	}
	decodeBody(t, rec, &created)
	if created.Export.Status != exports.StatusCompleted || created.Export.Format != exports.FormatCSV || created.Export.UserCount != 1 {
		t.Fatalf("unexpected export %+v", created.Export)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/exports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list exports status %d", rec.Code)
	}
	var listed struct {
		Exports []exports.Record `json:"exports"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Exports) != 1 || listed.Exports[0].ID != created.Export.ID {
		t.Fatalf("unexpected list %+v", listed.Exports)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/exports/"+created.Export.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get export status %d", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/exports/exp-missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing export status %d", rec.Code)
	}
}

func TestExportDefaultsToJSON(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/exports", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Export exports.Record `json:"export"`
	}
	decodeBody(t, rec, &created)
	if created.Export.Format != exports.FormatJSON {
		t.Fatalf("expected json default, got %q", created.Export.Format)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodPost, "/api/exports", `{"format":"xml"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}
