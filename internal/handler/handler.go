package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qoe-boost/backend/internal/integrations/carrierreg"
	"github.com/qoe-boost/backend/internal/middleware"
	"github.com/qoe-boost/backend/internal/models"
	"github.com/qoe-boost/backend/internal/service"
	"github.com/qoe-boost/backend/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Handler exposes the HTTP API over the service layer
type Handler struct {
	svc      *service.Service
	registry *carrierreg.Client // optional
}

// NewHandler initializes the HTTP handler
func NewHandler(svc *service.Service, registry *carrierreg.Client) *Handler {
	return &Handler{svc: svc, registry: registry}
}

// Root reports a service banner
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "QoE Boost API is running",
		"status":  "healthy",
	})
}

// Health reports storage mode and backend reachability
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	mode := h.svc.StorageMode()
	if err := h.svc.PingStorage(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"storage": string(mode),
			"error":   "database connection failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"storage": string(mode),
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		jsonError(w, "username is required", http.StatusBadRequest)
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		jsonError(w, "a valid email is required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		jsonError(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(req.Username, req.Email, req.Password, strings.TrimSpace(req.Provider))
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			jsonError(w, "username or email already registered", http.StatusConflict)
			return
		}
		jsonError(w, "failed to create user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	token, err := h.svc.Login(req.Username, req.Password, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			jsonError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		jsonError(w, "failed to log in", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(h.svc.TokenTTL().Seconds()),
	})
}

// Me returns the authenticated user's record
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type feedbackRequest struct {
	Rating   int    `json:"rating"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// CreateFeedback handles feedback submission. Without a token, durable mode
// rejects the request; fallback mode accepts it as anonymous.
func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.submitterID(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		jsonError(w, "rating must be between 1 and 5", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	fb, err := h.svc.SubmitFeedback(userID, req.Rating, strings.TrimSpace(req.Category), req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, "user not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to store feedback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"storage":   h.svc.StorageMode(),
		"anonymous": fb.Anonymous(),
		"feedback":  fb,
	})
}

// ListFeedback returns feedback scoped to the authenticated user, or all
// records for anonymous callers in fallback mode.
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.submitterID(w, r)
	if !ok {
		return
	}
	offset, limit, err := pagination(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.svc.ListFeedback(userID, offset, limit)
	if err != nil {
		jsonError(w, "failed to list feedback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"storage": h.svc.StorageMode(),
		"offset":  offset,
		"limit":   limit,
		"items":   items,
	})
}

type networkLogRequest struct {
	Location     string  `json:"location"`
	Provider     string  `json:"provider"`
	LatencyMs    float64 `json:"latency_ms"`
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	NetworkType  string  `json:"network_type"`
}

// CreateNetworkLog handles network measurement submission
func (h *Handler) CreateNetworkLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.submitterID(w, r)
	if !ok {
		return
	}

	var req networkLogRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Location == "" {
		jsonError(w, "location is required", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		jsonError(w, "provider is required", http.StatusBadRequest)
		return
	}
	if req.LatencyMs < 0 || req.DownloadMbps < 0 || req.UploadMbps < 0 {
		jsonError(w, "metrics must not be negative", http.StatusBadRequest)
		return
	}

	nl, err := h.svc.SubmitNetworkLog(userID, req.Location, req.Provider,
		req.LatencyMs, req.DownloadMbps, req.UploadMbps, strings.TrimSpace(req.NetworkType))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, "user not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to store network log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"storage":     h.svc.StorageMode(),
		"anonymous":   nl.Anonymous(),
		"network_log": nl,
	})
}

// ListNetworkLogs returns logs scoped to the authenticated user, or all
// records for anonymous callers in fallback mode.
func (h *Handler) ListNetworkLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.submitterID(w, r)
	if !ok {
		return
	}
	offset, limit, err := pagination(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.svc.ListNetworkLogs(userID, offset, limit)
	if err != nil {
		jsonError(w, "failed to list network logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"storage": h.svc.StorageMode(),
		"offset":  offset,
		"limit":   limit,
		"items":   items,
	})
}

// Recommendations returns ranked providers for a location
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		jsonError(w, "location query parameter is required", http.StatusBadRequest)
		return
	}

	providers, err := h.svc.Recommend(location)
	if err != nil {
		jsonError(w, "failed to compute recommendations", http.StatusInternalServerError)
		return
	}
	if providers == nil {
		providers = []models.ProviderScore{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location":  location,
		"providers": providers,
	})
}

// Providers returns the cached carrier registry table
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		jsonError(w, "carrier feed not configured", http.StatusServiceUnavailable)
		return
	}
	names := h.registry.Names()
	if len(names) == 0 {
		if err := h.registry.Refresh(); err != nil {
			jsonError(w, "carrier feed unavailable", http.StatusServiceUnavailable)
			return
		}
		names = h.registry.Names()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": names})
}

// submitterID resolves the acting user for telemetry endpoints. Authenticated
// requests act as that user; anonymous requests are only allowed when the
// process runs on the fallback store.
func (h *Handler) submitterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		return user.ID, true
	}
	if h.svc.StorageMode() == storage.ModeDurable {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return 0, false
	}
	return 0, true
}

// decodeJSON strictly decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// pagination parses offset/limit query parameters with defaults and caps
func pagination(query url.Values) (offset, limit int, err error) {
	offset = 0
	limit = defaultListLimit
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
