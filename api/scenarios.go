/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the catalog (and some
	ledgers) with data that demonstrates specific behaviour.

AVAILABLE SCENARIOS:

	single-shop:    One shop, two categories, multi-size products, no ledgers
	batch-example:  Three shops for today's batch publish:
	                  Shop A  valid draft            -> succeeds
	                  Shop B  already published      -> skipped
	                  Shop C  draft with negative CB -> fails, others unaffected

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create shops, sizes, categories, products
 3. Optionally save drafts and publish through the service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "batch-example"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Shop C's ledger is written straight to the store; SaveDraft would
	reject it. It stands in for a record damaged outside the engine.

SEE ALSO:
  - handlers.go: Ledger endpoints used after loading
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/barsheet-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-shop",
		Name:        "Single Shop",
		Description: "One shop with beer and spirits in several sizes, ready for today's first draft",
	},
	{
		ID:          "batch-example",
		Name:        "Batch Publish",
		Description: "Three shops: a valid draft, an already published day, and a draft with a negative closing balance",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario id.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": current})
}

// LoadScenario resets the database and loads one scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "single-shop":
		load = h.loadSingleShopScenario
	case "batch-example":
		load = h.loadBatchExampleScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Seeder.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Seeder.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// catalogSpec is a compact description of one shop's catalog.
type catalogSpec struct {
	shop       ledger.Shop
	sizes      []ledger.Size
	categories []ledger.Category
	products   []ledger.Product
}

func (h *Handler) seedCatalog(ctx context.Context, spec catalogSpec) error {
	if err := h.Seeder.SaveShop(ctx, spec.shop); err != nil {
		return err
	}
	for _, s := range spec.sizes {
		if err := h.Seeder.SaveSize(ctx, s); err != nil {
			return err
		}
	}
	for _, c := range spec.categories {
		if err := h.Seeder.SaveCategory(ctx, c); err != nil {
			return err
		}
	}
	for _, p := range spec.products {
		if err := h.Seeder.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("product %d: %w", p.ID, err)
		}
	}
	return nil
}

func variant(sizeID ledger.SizeID, price string, qty int64) ledger.Variant {
	return ledger.Variant{SizeID: sizeID, Price: decimal.RequireFromString(price), Quantity: decimal.NewFromInt(qty)}
}

// oneProductShop is a shop with a single product in a single size.
func oneProductShop(id ledger.ShopID, name string, onHand int64) catalogSpec {
	base := int64(id) * 100
	sizeID := ledger.SizeID(base + 1)
	return catalogSpec{
		shop:       ledger.Shop{ID: id, Name: name},
		sizes:      []ledger.Size{{ID: sizeID, ShopID: id, Name: "650ml"}},
		categories: []ledger.Category{{ID: ledger.CategoryID(base + 1), ShopID: id, Name: "Beer"}},
		products: []ledger.Product{{
			ID:         ledger.ProductID(base + 1),
			Name:       "Lager",
			CategoryID: ledger.CategoryID(base + 1),
			ShopID:     id,
			Variants:   []ledger.Variant{variant(sizeID, "2.50", onHand)},
		}},
	}
}

func (h *Handler) loadSingleShopScenario(ctx context.Context) error {
	const shopID ledger.ShopID = 1
	return h.seedCatalog(ctx, catalogSpec{
		shop: ledger.Shop{ID: shopID, Name: "Harbour Bar"},
		sizes: []ledger.Size{
			{ID: 1, ShopID: shopID, Name: "330ml"},
			{ID: 2, ShopID: shopID, Name: "650ml"},
			{ID: 3, ShopID: shopID, Name: "180ml"},
			{ID: 4, ShopID: shopID, Name: "750ml"},
		},
		categories: []ledger.Category{
			{ID: 1, ShopID: shopID, Name: "Beer"},
			{ID: 2, ShopID: shopID, Name: "Spirits"},
		},
		products: []ledger.Product{
			{ID: 1, Name: "Lager", CategoryID: 1, ShopID: shopID, Variants: []ledger.Variant{
				variant(1, "1.80", 48), variant(2, "3.20", 24),
			}},
			{ID: 2, Name: "Stout", CategoryID: 1, ShopID: shopID, Variants: []ledger.Variant{
				variant(2, "3.60", 12),
			}},
			{ID: 3, Name: "Whisky", CategoryID: 2, ShopID: shopID, Variants: []ledger.Variant{
				variant(3, "6.00", 20), variant(4, "22.00", 6),
			}},
		},
	})
}

func (h *Handler) loadBatchExampleScenario(ctx context.Context) error {
	day := h.Service.Today()
	shops := []catalogSpec{
		oneProductShop(1, "Shop A", 10),
		oneProductShop(2, "Shop B", 10),
		oneProductShop(3, "Shop C", 10),
	}
	for _, spec := range shops {
		if err := h.seedCatalog(ctx, spec); err != nil {
			return err
		}
	}

	sell := func(spec catalogSpec, qty int64) ledger.DraftInput {
		p := spec.products[0]
		return ledger.DraftInput{Sales: []ledger.RawEntry{{
			ProductID: p.ID,
			Sizes:     []ledger.RawSize{{SizeID: p.Variants[0].SizeID, Quantity: decimal.NewFromInt(qty)}},
		}}}
	}

	// Shop A: a valid draft
	if _, err := h.Service.SaveDraft(ctx, ledger.Key{ShopID: 1, Day: day}, sell(shops[0], 4), "scenario"); err != nil {
		return fmt.Errorf("shop A draft: %w", err)
	}

	// Shop B: already published
	if _, err := h.Service.SaveDraft(ctx, ledger.Key{ShopID: 2, Day: day}, sell(shops[1], 3), "scenario"); err != nil {
		return fmt.Errorf("shop B draft: %w", err)
	}
	if _, err := h.Service.Publish(ctx, 2, day); err != nil {
		return fmt.Errorf("shop B publish: %w", err)
	}

	// Shop C: a stored draft whose closing balance is negative
	p := shops[2].products[0]
	v := p.Variants[0]
	bad := &ledger.DailyLedger{
		ShopID:    3,
		Day:       day,
		OB:        []ledger.ProductSummary{},
		Receipts:  []ledger.ProductSummary{},
		Sales:     []ledger.ProductSummary{},
		Breaks:    []ledger.ProductSummary{},
		CB:        []ledger.ProductSummary{negativeLine(p.ID, p.CategoryName, v)},
		CreatedBy: "scenario",
		CreatedAt: h.Service.Clock(),
		UpdatedAt: h.Service.Clock(),
	}
	if err := h.Service.Store.Put(ctx, bad); err != nil {
		return fmt.Errorf("shop C ledger: %w", err)
	}
	return nil
}

func negativeLine(productID ledger.ProductID, category string, v ledger.Variant) ledger.ProductSummary {
	line := ledger.NewSizeAmount(v.SizeID, decimal.NewFromInt(-3), v.Price)
	ps := ledger.ProductSummary{ProductID: productID, CategoryName: category, Sizes: []ledger.SizeAmount{line}}
	ps.TotalAmount = ps.Total()
	return ps
}
