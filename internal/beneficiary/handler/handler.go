package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caredesk/internal/actor"
	"caredesk/internal/beneficiary/models"
	"caredesk/internal/beneficiary/sanitize"
	"caredesk/internal/beneficiary/service"
	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
	"caredesk/pkg/platform/httputil"
	"caredesk/pkg/requestcontext"
)

// Service defines the beneficiary operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, a actor.Context, raw sanitize.Raw) (*service.CreateResult, error)
	List(ctx context.Context, a actor.Context, branchID *id.BranchID) ([]*models.Beneficiary, error)
	Get(ctx context.Context, a actor.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error)
	Update(ctx context.Context, a actor.Context, beneficiaryID id.BeneficiaryID, raw sanitize.Raw) (*models.Beneficiary, error)
	PreviewPriority(ctx context.Context, a actor.Context, raw sanitize.Raw) (int, error)
}

// Handler serves the beneficiary endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the beneficiary routes. The actor middleware must run first.
func (h *Handler) Register(r chi.Router) {
	r.Get("/beneficiaries", h.HandleList)
	r.Post("/beneficiaries", h.HandleCreate)
	r.Post("/beneficiaries/priority", h.HandlePriority)
	r.Get("/beneficiaries/{id}", h.HandleGet)
	r.Put("/beneficiaries/{id}", h.HandleUpdate)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var branchID *id.BranchID
	if raw := r.URL.Query().Get("branchId"); raw != "" {
		parsed, err := id.ParseBranchID(raw)
		if err != nil {
			h.fail(ctx, w, "invalid branch filter", err)
			return
		}
		branchID = &parsed
	}

	records, err := h.service.List(ctx, actor.FromContext(ctx), branchID)
	if err != nil {
		h.fail(ctx, w, "failed to list beneficiaries", err)
		return
	}
	if records == nil {
		records = []*models.Beneficiary{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Beneficiaries: records})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	raw, ok := httputil.DecodeAndPrepare[sanitize.Raw](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, actor.FromContext(ctx), *raw)
	if err != nil {
		h.fail(ctx, w, "failed to create beneficiary", err)
		return
	}

	if result.Mode == service.ModeSingle {
		h.logger.InfoContext(ctx, "beneficiary created",
			"request_id", requestID,
			"beneficiary_id", result.First().ID.String(),
			"branch_id", result.First().BranchID.String(),
		)
		httputil.WriteJSON(w, http.StatusCreated, result.First())
		return
	}

	if result.Partial() {
		h.logger.WarnContext(ctx, "beneficiary replicated with failures",
			"request_id", requestID,
			"created", len(result.Created),
			"failed", len(result.Failed),
		)
	}
	httputil.WriteJSON(w, http.StatusCreated, toReplicationResponse(result))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	beneficiaryID, err := id.ParseBeneficiaryID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid beneficiary id", err)
		return
	}
	b, err := h.service.Get(ctx, actor.FromContext(ctx), beneficiaryID)
	if err != nil {
		h.fail(ctx, w, "failed to get beneficiary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	beneficiaryID, err := id.ParseBeneficiaryID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid beneficiary id", err)
		return
	}
	raw, ok := httputil.DecodeAndPrepare[sanitize.Raw](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	b, err := h.service.Update(ctx, actor.FromContext(ctx), beneficiaryID, *raw)
	if err != nil {
		h.fail(ctx, w, "failed to update beneficiary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) HandlePriority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, ok := httputil.DecodeAndPrepare[sanitize.Raw](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.PreviewPriority(ctx, actor.FromContext(ctx), *raw)
	if err != nil {
		h.fail(ctx, w, "failed to compute priority", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PriorityResponse{Priority: p})
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

func replicationMessage(result *service.CreateResult) string {
	if result.Partial() {
		return fmt.Sprintf("beneficiary created in %d of %d branches",
			len(result.Created), len(result.Created)+len(result.Failed))
	}
	return fmt.Sprintf("beneficiary created in %d branches", len(result.Created))
}
