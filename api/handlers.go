/*
handlers.go - HTTP API handlers for the daily ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to ledger.Service and
  ledger.BatchPublisher.

ENDPOINTS:
  Ledgers:
    GET    /api/ledgers/{shopId}/{date}            Current ledger (or unsaved preview)
    POST   /api/ledgers                            Save draft
    POST   /api/ledgers/{shopId}/{date}/publish    Publish draft
    GET    /api/ledgers/{shopId}                   Paginated summaries (?pageNumber, ?pageSize)
    GET    /api/ledgers/{shopId}?date=yyyy-mm-dd   Full ledgers for one day
    GET    /api/ledgers/{shopId}/range/{from}/{to} Full ledgers for a date range

  Reports:
    GET    /api/ledgers/export/{shopId}/{from}/{to} XLSX workbook for a range

  Batch (X-Batch-Key required):
    POST   /api/ledgers/batch-publish/{date}       Publish every shop's draft

  Scenarios:
    GET    /api/scenarios                          List demo scenarios
    POST   /api/scenarios/load                     Load a demo scenario
    POST   /api/scenarios/reset                    Clear all data

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the ledger service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown shop, no ledger for the day or range
  - 409: State conflict (already published), concurrent modification, key locked
  - 422: Closing balance would go negative
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/barsheet-engine/ledger"
	"github.com/warp/barsheet-engine/lock"
	"github.com/warp/barsheet-engine/render"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// DocumentRenderer turns a report document into a downloadable file.
type DocumentRenderer interface {
	Render(doc ledger.Document) ([]byte, error)
	FileName(doc ledger.Document) string
	ContentType() string
}

// CatalogSeeder is the write side of the catalog used by demo scenarios.
type CatalogSeeder interface {
	SaveShop(ctx context.Context, shop ledger.Shop) error
	SaveSize(ctx context.Context, size ledger.Size) error
	SaveCategory(ctx context.Context, c ledger.Category) error
	SaveProduct(ctx context.Context, p ledger.Product) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *ledger.Service
	Batch    *ledger.BatchPublisher
	Renderer DocumentRenderer
	Seeder   CatalogSeeder
	Logger   *zap.Logger

	// BatchKey is the shared secret for the batch trigger. Empty disables it.
	BatchKey string

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler rendering reports as XLSX.
func NewHandler(service *ledger.Service, batch *ledger.BatchPublisher, seeder CatalogSeeder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  service,
		Batch:    batch,
		Renderer: render.Excel{},
		Seeder:   seeder,
		Logger:   logger,
	}
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetLedger returns the saved ledger for the day, or a preview seeded from the catalog.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	shopID, day, ok := h.shopAndDay(w, r, "date")
	if !ok {
		return
	}

	l, err := h.Service.Current(r.Context(), shopID, day)
	if err != nil {
		h.writeDomainError(w, "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(l, h.shopName(r.Context(), shopID)))
}

// SaveDraft merges the submitted groups into the day's draft.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req SaveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ShopID <= 0 {
		writeError(w, http.StatusBadRequest, "shopId is required", nil)
		return
	}
	day, err := ledger.ParseDay(req.Date)
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}
	in, err := toDraftInput(req)
	if err != nil {
		h.writeDomainError(w, "Invalid clear list", err)
		return
	}

	key := ledger.Key{ShopID: ledger.ShopID(req.ShopID), Day: day}
	saved, err := h.Service.SaveDraft(r.Context(), key, in, req.CreatedBy)
	if err != nil {
		h.writeDomainError(w, "Failed to save draft", err)
		return
	}

	status := http.StatusOK
	if saved.Version == 1 {
		status = http.StatusCreated
	}
	writeJSON(w, status, toLedgerDTO(saved, h.shopName(r.Context(), key.ShopID)))
}

// Publish applies the draft's closing balance to the catalog and freezes the ledger.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	shopID, day, ok := h.shopAndDay(w, r, "date")
	if !ok {
		return
	}

	published, err := h.Service.Publish(r.Context(), shopID, day)
	if err != nil {
		h.writeDomainError(w, "Failed to publish ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(published, h.shopName(r.Context(), shopID)))
}

// ListLedgers returns a page of summaries, or full ledgers for ?date=.
func (h *Handler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := ledger.ParseDay(raw)
		if err != nil {
			h.writeDomainError(w, "Invalid date", err)
			return
		}
		ledgers, err := h.Service.ListByDay(ctx, shopID, day)
		if err != nil {
			h.writeDomainError(w, "Failed to list ledgers", err)
			return
		}
		writeJSON(w, http.StatusOK, h.toLedgerDTOs(ctx, shopID, ledgers))
		return
	}

	pageNumber, err := queryInt(r, "pageNumber")
	if err != nil {
		h.writeDomainError(w, "Invalid pageNumber", err)
		return
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		h.writeDomainError(w, "Invalid pageSize", err)
		return
	}

	page, err := h.Service.List(ctx, shopID, pageNumber, pageSize)
	if err != nil {
		h.writeDomainError(w, "Failed to list ledgers", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryPageResponse(page))
}

// GetRange returns every ledger between from and to inclusive.
func (h *Handler) GetRange(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	ledgers, err := h.Service.Range(r.Context(), shopID, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to load ledgers", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLedgerDTOs(r.Context(), shopID, ledgers))
}

// ExportRange renders a date range as a downloadable report.
func (h *Handler) ExportRange(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.Document(r.Context(), shopID, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	body, err := h.Renderer.Render(doc)
	if err != nil {
		h.writeDomainError(w, "Failed to render report", err)
		return
	}

	w.Header().Set("Content-Type", h.Renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.Renderer.FileName(doc)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// =============================================================================
// BATCH ENDPOINT
// =============================================================================

// BatchPublish publishes every shop's draft for the day. Per-shop failures
// are in the body; the status is 200 unless shops could not be listed.
func (h *Handler) BatchPublish(w http.ResponseWriter, r *http.Request) {
	day, err := ledger.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}

	result, err := h.Batch.Run(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, "Batch publish failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchPublishResponse(result))
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Service.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) shopID(w http.ResponseWriter, r *http.Request) (ledger.ShopID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "shopId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid shop id", err)
		return 0, false
	}
	return ledger.ShopID(id), true
}

func (h *Handler) shopAndDay(w http.ResponseWriter, r *http.Request, param string) (ledger.ShopID, ledger.Day, bool) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return 0, ledger.Day{}, false
	}
	day, err := ledger.ParseDay(chi.URLParam(r, param))
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return 0, ledger.Day{}, false
	}
	return shopID, day, true
}

func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (ledger.Day, ledger.Day, bool) {
	from, err := ledger.ParseDay(chi.URLParam(r, "from"))
	if err != nil {
		h.writeDomainError(w, "Invalid from date", err)
		return ledger.Day{}, ledger.Day{}, false
	}
	to, err := ledger.ParseDay(chi.URLParam(r, "to"))
	if err != nil {
		h.writeDomainError(w, "Invalid to date", err)
		return ledger.Day{}, ledger.Day{}, false
	}
	return from, to, true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ledger.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

// shopName is best effort; a missing shop just leaves the name empty.
func (h *Handler) shopName(ctx context.Context, shopID ledger.ShopID) string {
	shop, err := h.Service.Store.Shop(ctx, shopID)
	if err != nil {
		return ""
	}
	return shop.DisplayName()
}

func (h *Handler) toLedgerDTOs(ctx context.Context, shopID ledger.ShopID, ledgers []ledger.DailyLedger) []LedgerDTO {
	name := h.shopName(ctx, shopID)
	out := make([]LedgerDTO, 0, len(ledgers))
	for i := range ledgers {
		out = append(out, toLedgerDTO(&ledgers[i], name))
	}
	return out
}

// statusFor maps the ledger error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrBalanceViolation):
		return http.StatusUnprocessableEntity, "balance_violation"
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ledger.ErrAlreadyPublished):
		return http.StatusConflict, "already_published"
	case errors.Is(err, ledger.ErrNoLedgerToPublish):
		return http.StatusConflict, "no_ledger"
	case errors.Is(err, ledger.ErrDraftOnPublished):
		return http.StatusConflict, "ledger_published"
	case errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, lock.ErrNotObtained):
		return http.StatusConflict, "locked"
	case ledger.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError maps err to a status. Internal error details are logged, not returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: message, Code: code}
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	} else {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
