package admission

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sujalmh/storectl/internal/audit"
	"github.com/sujalmh/storectl/internal/httpserver"
	"github.com/sujalmh/storectl/internal/storeerr"
	"github.com/sujalmh/storectl/pkg/credential"
	"github.com/sujalmh/storectl/pkg/ratelimit"
)

// Handler provides HTTP handlers for the admission API.
type Handler struct {
	logger      *slog.Logger
	audit       *audit.Writer
	service     *Service
	createLimit *ratelimit.Limiter
}

// NewHandler creates an admission Handler.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, service *Service, createLimit *ratelimit.Limiter) *Handler {
	return &Handler{logger: logger, audit: auditWriter, service: service, createLimit: createLimit}
}

// AuthRoutes returns the unauthenticated /auth routes.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	return r
}

// StoreRoutes returns the /stores routes. The caller is responsible for
// mounting these behind the bearer-token auth.Middleware.
func (h *Handler) StoreRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateStore)
	r.Get("/", h.handleListStores)
	r.Get("/{id}", h.handleGetStore)
	r.Delete("/{id}", h.handleDeleteStore)
	r.Get("/{id}/health", h.handleStoreHealth)
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, "registering principal", err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, "authenticating principal", err)
		return
	}

	httpserver.Respond(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := credential.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	if h.createLimit != nil {
		result, err := h.createLimit.Allow(r.Context(), userID, "POST /stores")
		if err != nil {
			h.logger.Error("checking rate limit", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to check rate limit")
			return
		}
		if !result.Allowed {
			httpserver.RespondRateLimited(w, int(result.RetryAfter.Seconds()))
			return
		}
	}

	var req CreateStoreRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	store, err := h.service.CreateStore(r.Context(), userID, req)
	if err != nil {
		h.respondServiceError(w, "creating store", err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "create_store", "store", store.ID, nil)
	}

	httpserver.Respond(w, http.StatusAccepted, toStoreResponse(store))
}

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	userID, ok := credential.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	stores, err := h.service.ListStores(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing stores", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list stores")
		return
	}

	items := make([]StoreResponse, 0, len(stores))
	for _, s := range stores {
		items = append(items, toStoreResponse(s))
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleGetStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := credential.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid store ID")
		return
	}

	store, err := h.service.GetOwnedStore(r.Context(), userID, storeID)
	if err != nil {
		h.respondServiceError(w, "loading store", err)
		return
	}

	httpserver.Respond(w, http.StatusOK, toStoreDetailsResponse(store))
}

func (h *Handler) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := credential.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid store ID")
		return
	}

	if err := h.service.DeleteStore(r.Context(), userID, storeID); err != nil {
		h.respondServiceError(w, "deleting store", err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "delete_store", "store", storeID, nil)
	}

	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "deleting"})
}

func (h *Handler) handleStoreHealth(w http.ResponseWriter, r *http.Request) {
	userID, ok := credential.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid store ID")
		return
	}

	health, err := h.service.StoreHealth(r.Context(), userID, storeID)
	if err != nil {
		h.respondServiceError(w, "checking store health", err)
		return
	}

	httpserver.Respond(w, http.StatusOK, health)
}

// respondServiceError maps a domain error's storeerr.Kind to an HTTP
// status code, logging anything that falls through as an internal error.
func (h *Handler) respondServiceError(w http.ResponseWriter, action string, err error) {
	kind := storeerr.KindOf(err)

	status, errStr := http.StatusInternalServerError, "internal_error"
	switch kind {
	case storeerr.KindBadRequest:
		status, errStr = http.StatusBadRequest, "bad_request"
	case storeerr.KindUnauthorized:
		status, errStr = http.StatusUnauthorized, "unauthorized"
	case storeerr.KindForbidden:
		status, errStr = http.StatusForbidden, "forbidden"
	case storeerr.KindNotFound:
		status, errStr = http.StatusNotFound, "not_found"
	case storeerr.KindConflict:
		status, errStr = http.StatusConflict, "conflict"
	case storeerr.KindTooManyReqs:
		httpserver.RespondRateLimited(w, 60)
		return
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(action, "error", err)
	}
	httpserver.RespondError(w, status, errStr, err.Error())
}
