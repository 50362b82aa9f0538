package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caredesk/internal/actor"
	"caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	"caredesk/pkg/platform/httputil"
	"caredesk/pkg/requestcontext"
)

// Service defines the branch operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, a actor.Context) ([]*models.Branch, error)
	Create(ctx context.Context, a actor.Context, code, name string) (*models.Branch, error)
	Deactivate(ctx context.Context, a actor.Context, branchID id.BranchID) (*models.Branch, error)
	Reactivate(ctx context.Context, a actor.Context, branchID id.BranchID) (*models.Branch, error)
}

// Handler serves the branch directory endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the branch routes. The actor middleware must run first.
func (h *Handler) Register(r chi.Router) {
	r.Get("/branches", h.HandleList)
	r.Post("/branches", h.HandleCreate)
	r.Patch("/branches/{id}/deactivate", h.HandleDeactivate)
	r.Patch("/branches/{id}/reactivate", h.HandleReactivate)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	branches, err := h.service.List(ctx, actor.FromContext(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to list branches", err)
		return
	}
	resp := ListResponse{Branches: make([]Response, 0, len(branches))}
	for _, b := range branches {
		resp.Branches = append(resp.Branches, toResponse(b))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	b, err := h.service.Create(ctx, actor.FromContext(ctx), req.Code, req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to create branch", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(b))
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to deactivate branch", h.service.Deactivate)
}

func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to reactivate branch", h.service.Reactivate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, failMsg string,
	apply func(context.Context, actor.Context, id.BranchID) (*models.Branch, error)) {
	ctx := r.Context()
	branchID, err := id.ParseBranchID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid branch id", err)
		return
	}
	b, err := apply(ctx, actor.FromContext(ctx), branchID)
	if err != nil {
		h.fail(ctx, w, failMsg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := requestcontext.RequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestID)
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestID)
	}
	httputil.WriteError(w, err)
}
