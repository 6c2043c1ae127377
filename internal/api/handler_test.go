package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/models"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/store"
)

type memStore struct {
	users []models.User
	err   error
}

func (m *memStore) FindAll(ctx context.Context) ([]models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

func (m *memStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) Save(ctx context.Context, u *models.User) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u.ID != 0 {
		for i := range m.users {
			if m.users[i].ID == u.ID {
				m.users[i].Username = u.Username
				m.users[i].Email = u.Email
				saved := m.users[i]
				return &saved, nil
			}
		}
		return nil, fmt.Errorf("update user %d: %w", u.ID, store.ErrNotFound)
	}
	saved := models.User{
		ID:        int64(len(m.users) + 1),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	m.users = append(m.users, saved)
	return &saved, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.users)), nil
}

type staticHealth bool

func (h staticHealth) IsConnectionHealthy(ctx context.Context) bool { return bool(h) }

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func server(users UserStore, healthy bool) http.Handler {
	h := NewHandler(users, staticHealth(healthy))
	h.now = func() time.Time { return fixedNow }
	return NewRouter(h, []string{"http://localhost:3000"})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func Test_Hello(t *testing.T) {
	srv := server(&memStore{}, true)

	rec := do(t, srv, http.MethodGet, "/api/hello", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Hello, World!" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
}

func Test_HelloJSON(t *testing.T) {
	srv := server(&memStore{}, false)

	rec := do(t, srv, http.MethodGet, "/api/hello.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Message         string `json:"message"`
		Timestamp       int64  `json:"timestamp"`
		DatabaseHealthy bool   `json:"database_healthy"`
	}
	decode(t, rec, &body)

	if body.Message != "Hello, World!" || body.Timestamp != fixedNow.UnixMilli() || body.DatabaseHealthy {
		t.Fatalf("unexpected body %+v", body)
	}
}

func Test_Health(t *testing.T) {
	tests := []struct {
		path     string
		healthy  bool
		status   string
		database string
	}{
		{"/api/health", true, "UP", "CONNECTED"},
		{"/api/health.json", true, "UP", "CONNECTED"},
		{"/api/health", false, "DOWN", "DISCONNECTED"},
	}

	for i, test := range tests {
		rec := do(t, server(&memStore{}, test.healthy), http.MethodGet, test.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("test[%d] - expected 200, got %d", i, rec.Code)
		}

		var body map[string]interface{}
		decode(t, rec, &body)

		if body["status"] != test.status || body["database"] != test.database {
			t.Fatalf("test[%d] - unexpected body %v", i, body)
		}
		if body["timestamp"] != float64(fixedNow.UnixMilli()) {
			t.Fatalf("test[%d] - unexpected timestamp %v", i, body["timestamp"])
		}
	}
}

func Test_CreateThenGet(t *testing.T) {
	srv := server(&memStore{}, true)

	rec := do(t, srv, http.MethodPost, "/api/users", `{"username":"alice","email":"alice@x.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := rec.Body.String()

	expected := `{"id":1,"username":"alice","email":"alice@x.com","createdAt":"2024-05-01T12:00:00Z"}` + "\n"
	if created != expected {
		t.Fatalf("expected %q, got %q", expected, created)
	}

	for _, path := range []string{"/api/users/1", "/api/users/1.json"} {
		rec = do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s - expected 200, got %d", path, rec.Code)
		}
		if rec.Body.String() != created {
			t.Fatalf("%s - expected %q, got %q", path, created, rec.Body.String())
		}
	}
}

func Test_CreateJSONAlias(t *testing.T) {
	users := &memStore{}
	srv := server(users, true)

	rec := do(t, srv, http.MethodPost, "/api/users.json", `{"username":"bob","email":"bob@x.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(users.users) != 1 || users.users[0].Username != "bob" {
		t.Fatalf("expected bob to be saved, got %v", users.users)
	}
}

func Test_CreateUpdatesExisting(t *testing.T) {
	users := &memStore{}
	srv := server(users, true)

	do(t, srv, http.MethodPost, "/api/users", `{"username":"alice","email":"alice@x.com"}`)

	rec := do(t, srv, http.MethodPost, "/api/users", `{"id":1,"username":"alice","email":"new@x.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var u models.User
	decode(t, rec, &u)
	if u.ID != 1 || u.Email != "new@x.com" || len(users.users) != 1 {
		t.Fatalf("expected in-place update, got %v (store %v)", u, users.users)
	}

	rec = do(t, srv, http.MethodPost, "/api/users", `{"id":9,"username":"ghost","email":"ghost@x.com"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 updating missing user, got %d", rec.Code)
	}
}

func Test_CreateInvalidBody(t *testing.T) {
	rec := do(t, server(&memStore{}, true), http.MethodPost, "/api/users", `{"username":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func Test_GetUser(t *testing.T) {
	srv := server(&memStore{}, true)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/users/42", http.StatusNotFound},
		{"/api/users/42.json", http.StatusNotFound},
		{"/api/users/abc", http.StatusBadRequest},
	}

	for i, test := range tests {
		if rec := do(t, srv, http.MethodGet, test.path, ""); rec.Code != test.status {
			t.Fatalf("test[%d] - %s: expected %d, got %d", i, test.path, test.status, rec.Code)
		}
	}
}

func Test_ListUsers(t *testing.T) {
	users := &memStore{}
	srv := server(users, true)

	for _, path := range []string{"/api/users", "/api/users.json"} {
		rec := do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s - expected 200, got %d", path, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Fatalf("%s - expected empty array, got %q", path, rec.Body.String())
		}
	}

	do(t, srv, http.MethodPost, "/api/users", `{"username":"alice","email":"alice@x.com"}`)
	do(t, srv, http.MethodPost, "/api/users", `{"username":"bob","email":"bob@x.com"}`)

	rec := do(t, srv, http.MethodGet, "/api/users", "")

	var list []models.User
	decode(t, rec, &list)
	if len(list) != 2 || list[0].Username != "alice" || list[1].Username != "bob" {
		t.Fatalf("unexpected users %v", list)
	}
}

func Test_CountUsers(t *testing.T) {
	users := &memStore{users: []models.User{{ID: 1}, {ID: 2}, {ID: 3}}}
	srv := server(users, true)

	for _, path := range []string{"/api/users/count", "/api/users/count.json"} {
		rec := do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s - expected 200, got %d", path, rec.Code)
		}

		var body struct {
			Count     int64 `json:"count"`
			Timestamp int64 `json:"timestamp"`
		}
		decode(t, rec, &body)
		if body.Count != 3 || body.Timestamp != fixedNow.UnixMilli() {
			t.Fatalf("%s - unexpected body %+v", path, body)
		}
	}
}

func Test_StoreFailure(t *testing.T) {
	srv := server(&memStore{err: errors.New("connection reset")}, true)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/users", ""},
		{http.MethodGet, "/api/users/1", ""},
		{http.MethodGet, "/api/users/count", ""},
		{http.MethodPost, "/api/users", `{"username":"alice","email":"alice@x.com"}`},
	}

	for i, test := range tests {
		rec := do(t, srv, test.method, test.path, test.body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("test[%d] - %s %s: expected 500, got %d", i, test.method, test.path, rec.Code)
		}
	}
}

func Test_RequestIDAndCORS(t *testing.T) {
	srv := server(&memStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}
}
