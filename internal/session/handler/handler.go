// Package handler wires the session service to its HTTP surface. It stays a
// thin layer: request parsing, error translation and logging live here,
// business rules stay in the service.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bursa/internal/session/export"
	"bursa/internal/session/importer"
	"bursa/internal/session/models"
	"bursa/internal/session/service"
	"bursa/internal/session/store"
	dErrors "bursa/pkg/domain-errors"
	"bursa/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
	policy  importer.Policy
}

// New constructs the handler. policy configures duplicate handling for
// imports; nil keeps every record.
func New(svc *service.Service, logger *slog.Logger, policy importer.Policy) *Handler {
	return &Handler{service: svc, logger: logger, policy: policy}
}

// Register mounts all session endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.handleSession)
	r.Post("/session/candidates", h.handleImport)
	r.Post("/session/capacity-plan", h.handleCapacityPlan)
	r.Delete("/session", h.handleReset)

	r.Get("/candidates", h.handleCandidates)
	r.Get("/candidates/search", h.handleSearch)
	r.Post("/candidates/{requestID}/decision", h.handleDecision)

	r.Get("/quotas", h.handleQuotas)
	r.Post("/quotas/transfer", h.handleTransfer)

	r.Get("/export/decisions", h.handleExportDecisions)
	r.Get("/export/quotas", h.handleExportQuotas)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.service.Status(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.Stats(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{Status: status, Stats: stats})
}

// handleImport parses the uploaded tabular file and bulk-loads the result.
// The current quota table supplies canonical program spellings.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	canonical, err := h.service.CanonicalPrograms(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	imp := importer.New(importer.Options{
		CanonicalPrograms: canonical,
		Policy:            h.policy,
	})
	result, err := imp.Parse(r.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "import parse failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnprocessable, "could not parse import file"))
		return
	}

	n, err := h.service.LoadCandidates(ctx, result.Candidates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "import completed",
		"batch_id", result.BatchID,
		"form", result.Form,
		"imported", n,
		"skipped", result.Report.Skipped,
		"duplicates", len(result.Report.Duplicates),
	)
	httputil.WriteJSON(w, http.StatusOK, ImportResponse{
		BatchID:  result.BatchID,
		Form:     string(result.Form),
		Imported: n,
		Report:   result.Report,
	})
}

func (h *Handler) handleCapacityPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := httputil.Decode[models.CapacityPlan](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.LoadCapacityPlan(ctx, plan)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"buckets": n})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.service.Candidates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	httputil.WriteJSON(w, http.StatusOK, candidates)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	field := store.SearchField(r.URL.Query().Get("field"))
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "query parameter q is required"))
		return
	}

	matches, err := h.service.Search(r.Context(), field, query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if matches == nil {
		matches = []models.Candidate{}
	}
	httputil.WriteJSON(w, http.StatusOK, matches)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "requestID")

	req, err := httputil.Decode[DecisionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	decision := models.Decision(req.Decision)

	if err := h.service.ApplyDecision(ctx, requestID, decision); err != nil {
		h.logger.WarnContext(ctx, "decision rejected",
			"request_id", requestID,
			"decision", req.Decision,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{RequestID: requestID, Decision: decision})
}

func (h *Handler) handleQuotas(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.QuotaStatuses(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statuses)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[TransferRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.TransferCapacity(ctx, req.From(), req.To(), req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer rejected",
			"from", req.From().String(),
			"to", req.To().String(),
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExportDecisions(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.service.Candidates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="decisions.csv"`)
		err = export.DecisionListCSV(w, candidates)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = export.DecisionListText(w, candidates)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "format must be csv or text"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "decision export failed", "error", err)
	}
}

func (h *Handler) handleExportQuotas(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.QuotaStatuses(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="quotas.csv"`)
		err = export.QuotaSheetCSV(w, statuses)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = export.QuotaSheetText(w, statuses)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "format must be csv or text"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "quota export failed", "error", err)
	}
}
