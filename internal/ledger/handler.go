package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RebuildEnqueuer hands a rebuild off to the background worker.
type RebuildEnqueuer interface {
	EnqueueRebuild(ctx context.Context, in RebuildInput) (string, error)
}

// Handler wires the ledger JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	balances  *Balances
	enqueuer  RebuildEnqueuer
	validator *validator.Validate
	reports   singleflight.Group
	now       func() time.Time
}

// NewHandler constructs a Handler instance. A nil enqueuer makes the
// rebuild endpoint run synchronously.
func NewHandler(logger *slog.Logger, service *Service, balances *Balances, enqueuer RebuildEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		balances:  balances,
		enqueuer:  enqueuer,
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Get("/accounts/{id}/balance", h.accountBalance)
	r.Get("/accounts/{id}/statement", h.accountStatement)
	r.Post("/accounts/{id}/opening-balance", h.postOpeningBalance)
	r.Get("/entries/{refType}/{refID}", h.entriesByReference)
	r.Delete("/entries/{refType}/{refID}", h.deletePosting)
	r.Post("/rebuild", h.rebuild)
	r.Get("/reports/trial-balance", h.trialBalance)
	r.Get("/reports/balance-sheet", h.balanceSheet)
	r.Get("/reports/profit-loss", h.profitAndLoss)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.balances.Accounts(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
			return
		}
		asOf = &t
	}
	view, err := h.balances.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) accountStatement(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}
	statement, err := h.balances.AccountStatement(r.Context(), id, start, end)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) postOpeningBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req openingBalanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	asOf, err := time.Parse(dateLayout, req.AsOf)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
		return
	}

	result, err := h.service.PostOpeningBalance(r.Context(), id, req.Amount, asOf, actorID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) entriesByReference(w http.ResponseWriter, r *http.Request) {
	ref, refID, err := referenceParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entries, err := h.balances.EntriesByReference(r.Context(), ref, refID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) deletePosting(w http.ResponseWriter, r *http.Request) {
	ref, refID, err := referenceParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.DeletePosting(r.Context(), ref, refID, actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	in, err := req.toInput(actorID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// Dry runs answer inline so the caller sees the counts; real runs go
	// to the worker when one is configured.
	if h.enqueuer != nil && !in.DryRun {
		taskID, err := h.enqueuer.EnqueueRebuild(r.Context(), in)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
		return
	}

	summary, err := h.service.Rebuild(r.Context(), in, h.logger)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("tb:%s:%s", start.Format(dateLayout), end.Format(dateLayout))
	report, err, _ := h.reports.Do(key, func() (any, error) {
		return h.balances.TrialBalance(r.Context(), start, end)
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("as_of")
	asOf := time.Now()
	if raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
			return
		}
		asOf = t
	}
	key := "bs:" + asOf.Format(dateLayout)
	report, err, _ := h.reports.Do(key, func() (any, error) {
		return h.balances.BalanceSheet(r.Context(), asOf)
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("pl:%s:%s", start.Format(dateLayout), end.Format(dateLayout))
	report, err, _ := h.reports.Do(key, func() (any, error) {
		return h.balances.ProfitAndLoss(r.Context(), start, end)
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// window parses the start/end query params. Missing params default to the
// current month in UTC, never the host zone.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := h.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid start date")
			return start, end, false
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid end date")
			return start, end, false
		}
		end = t
	}
	if end.Before(start) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "end date before start date")
		return start, end, false
	}
	return start, end, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidReference), errors.Is(err, ErrRebuildRange):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Posting", err.Error())
	case errors.Is(err, ErrAccountConflict), errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrPostingLocked):
		httpx.Problem(w, http.StatusConflict, "Posting In Progress", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func referenceParams(r *http.Request) (ReferenceType, int64, error) {
	ref := ReferenceType(chi.URLParam(r, "refType"))
	switch ref {
	case RefOrder, RefPayment, RefExpense, RefVendorBill, RefVendorPayment, RefOpeningBalance:
	default:
		return "", 0, fmt.Errorf("unknown reference type %q", string(ref))
	}
	refID, err := strconv.ParseInt(chi.URLParam(r, "refID"), 10, 64)
	if err != nil || refID <= 0 {
		return "", 0, errors.New("invalid reference id")
	}
	return ref, refID, nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return "invalid fields: " + strings.Join(fields, ", ")
	}
	return err.Error()
}

// actorID reads the authenticated user id the edge proxy forwards.
func actorID(r *http.Request) *int64 {
	raw := r.Header.Get("X-Actor-Id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
