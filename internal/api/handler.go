package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/models"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/store"
)

const greeting = "Hello, World!"

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// UserStore defines the repository operations the API serves.
type UserStore interface {
	FindAll(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Save(ctx context.Context, u *models.User) (*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	IsConnectionHealthy(ctx context.Context) bool
}

// Handler holds the user and health HTTP handlers.
type Handler struct {
	users  UserStore
	health HealthChecker
	now    func() time.Time
}

func NewHandler(users UserStore, health HealthChecker) *Handler {
	return &Handler{users: users, health: health, now: time.Now}
}

// Register mounts the API routes on r. Every JSON route is also served
// with a .json suffix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/hello", h.Hello)
	r.Get("/hello.json", h.HelloJSON)

	r.Get("/health", h.Health)
	r.Get("/health.json", h.Health)

	r.Get("/users", h.List)
	r.Get("/users.json", h.List)
	r.Post("/users", h.Create)
	r.Post("/users.json", h.Create)

	r.Get("/users/count", h.Count)
	r.Get("/users/count.json", h.Count)

	// {id} also captures "{id}.json"; Get trims the suffix.
	r.Get("/users/{id}", h.Get)
}

func (h *Handler) timestamp() int64 {
	return h.now().UnixMilli()
}

// Hello returns a plain-text greeting.
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(greeting))
}

// HelloJSON returns the greeting along with the database health.
func (h *Handler) HelloJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          greeting,
		"timestamp":        h.timestamp(),
		"database_healthy": h.health.IsConnectionHealthy(r.Context()),
	})
}

// Health reports service and database status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, database := "DOWN", "DISCONNECTED"
	if h.health.IsConnectionHealthy(r.Context()) {
		status, database = "UP", "CONNECTED"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"database":  database,
		"timestamp": h.timestamp(),
	})
}

// List returns every user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context())
	if err != nil {
		log.Printf("list users error: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns a single user by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimSuffix(chi.URLParam(r, "id"), ".json")

	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		log.Printf("get user %d error: %v", id, err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create saves the user in the request body. A body carrying an id updates
// that user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	user, err := h.users.Save(r.Context(), req.User())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		log.Printf("save user error: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Count returns the number of users.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.users.Count(r.Context())
	if err != nil {
		log.Printf("count users error: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     n,
		"timestamp": h.timestamp(),
	})
}
