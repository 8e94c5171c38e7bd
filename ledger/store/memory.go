// Package store provides an in-memory ledger.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/barsheet-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	shops      map[ledger.ShopID]ledger.Shop
	sizes      map[ledger.ShopID]map[ledger.SizeID]ledger.Size
	categories map[ledger.CategoryID]ledger.Category
	products   map[ledger.ProductID]ledger.Product
	ledgers    map[key]ledger.DailyLedger
}

type key struct {
	ShopID ledger.ShopID
	Day    string
}

func keyOf(k ledger.Key) key {
	return key{ShopID: k.ShopID, Day: k.Day.String()}
}

func NewMemory() *Memory {
	return &Memory{
		shops:      make(map[ledger.ShopID]ledger.Shop),
		sizes:      make(map[ledger.ShopID]map[ledger.SizeID]ledger.Size),
		categories: make(map[ledger.CategoryID]ledger.Category),
		products:   make(map[ledger.ProductID]ledger.Product),
		ledgers:    make(map[key]ledger.DailyLedger),
	}
}

// =============================================================================
// CATALOG SEEDING
// =============================================================================

func (m *Memory) SaveShop(_ context.Context, shop ledger.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[shop.ID] = shop
	return nil
}

func (m *Memory) SaveSize(_ context.Context, size ledger.Size) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sizes[size.ShopID] == nil {
		m.sizes[size.ShopID] = make(map[ledger.SizeID]ledger.Size)
	}
	m.sizes[size.ShopID][size.ID] = size
	return nil
}

func (m *Memory) SaveCategory(_ context.Context, c ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

// SaveProduct stores the product after checking its variants against the shop's sizes.
func (m *Memory) SaveProduct(_ context.Context, p ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[ledger.SizeID]bool)
	for id := range m.sizes[p.ShopID] {
		known[id] = true
	}
	if err := p.Validate(known); err != nil {
		return err
	}
	p.Variants = append([]ledger.Variant(nil), p.Variants...)
	m.products[p.ID] = p
	return nil
}

// =============================================================================
// CATALOG READS (ledger.CatalogReader)
// =============================================================================

func (m *Memory) Shops(_ context.Context) ([]ledger.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Shop, 0, len(m.shops))
	for _, s := range m.shops {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Shop(_ context.Context, shopID ledger.ShopID) (ledger.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shops[shopID]
	if !ok {
		return ledger.Shop{}, fmt.Errorf("shop %d: %w", shopID, ledger.ErrNotFound)
	}
	return s, nil
}

func (m *Memory) Products(_ context.Context, shopID ledger.ShopID) ([]ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Product
	for _, p := range m.products {
		if p.ShopID != shopID {
			continue
		}
		p.Variants = append([]ledger.Variant(nil), p.Variants...)
		if c, ok := m.categories[p.CategoryID]; ok {
			p.CategoryName = c.Name
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SizeNames(_ context.Context, shopID ledger.ShopID) (map[ledger.SizeID]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[ledger.SizeID]string)
	for id, s := range m.sizes[shopID] {
		names[id] = s.Name
	}
	return names, nil
}

// =============================================================================
// CATALOG WRITES (ledger.CatalogWriter)
// =============================================================================

func (m *Memory) SetQuantities(_ context.Context, shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setQuantitiesLocked(shopID, updates)
}

func (m *Memory) setQuantitiesLocked(shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	for _, u := range updates {
		if u.Quantity.IsNegative() {
			return &ledger.BalanceViolationError{ProductID: u.ProductID, SizeID: u.SizeID, Quantity: u.Quantity}
		}
		p, ok := m.products[u.ProductID]
		if !ok || p.ShopID != shopID {
			continue
		}
		variants := append([]ledger.Variant(nil), p.Variants...)
		for i := range variants {
			if variants[i].SizeID == u.SizeID {
				variants[i].Quantity = u.Quantity
			}
		}
		p.Variants = variants
		m.products[u.ProductID] = p
	}
	return nil
}

// =============================================================================
// LEDGERS (ledger.LedgerStore)
// =============================================================================

func (m *Memory) Get(_ context.Context, k ledger.Key) (*ledger.DailyLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(k), nil
}

func (m *Memory) getLocked(k ledger.Key) *ledger.DailyLedger {
	l, ok := m.ledgers[keyOf(k)]
	if !ok {
		return nil
	}
	cp := cloneLedger(l)
	return &cp
}

func (m *Memory) Put(_ context.Context, l *ledger.DailyLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(l)
}

func (m *Memory) putLocked(l *ledger.DailyLedger) error {
	k := keyOf(l.Key())
	existing, exists := m.ledgers[k]
	switch {
	case l.Version == 0 && exists:
		return ledger.ErrConcurrentModification
	case l.Version > 0 && (!exists || existing.Version != l.Version || existing.IsPublished):
		return ledger.ErrConcurrentModification
	}
	l.Version++
	m.ledgers[k] = cloneLedger(*l)
	return nil
}

// =============================================================================
// REPORTS (ledger.ReportStore)
// =============================================================================

func (m *Memory) ListSummaries(_ context.Context, shopID ledger.ShopID, offset, limit int) ([]ledger.LedgerSummary, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []ledger.LedgerSummary
	for _, l := range m.ledgers {
		if l.ShopID == shopID {
			all = append(all, l.Summary())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Day.After(all[j].Day) })

	total := len(all)
	if offset < 0 || limit <= 0 || offset >= total {
		return []ledger.LedgerSummary{}, total, nil
	}
	end := offset + min(limit, total-offset)
	return all[offset:end], total, nil
}

func (m *Memory) Range(_ context.Context, shopID ledger.ShopID, from, to ledger.Day) ([]ledger.DailyLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []ledger.DailyLedger{}
	for _, l := range m.ledgers {
		if l.ShopID != shopID || l.Day.Before(from) || l.Day.After(to) {
			continue
		}
		result = append(result, cloneLedger(l))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

// =============================================================================
// TRANSACTIONS (ledger.Store.WithTx)
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	products map[ledger.ProductID]ledger.Product
	ledgers  map[key]ledger.DailyLedger
}

func (m *Memory) snapshot() memorySnapshot {
	products := make(map[ledger.ProductID]ledger.Product, len(m.products))
	for id, p := range m.products {
		p.Variants = append([]ledger.Variant(nil), p.Variants...)
		products[id] = p
	}
	ledgers := make(map[key]ledger.DailyLedger, len(m.ledgers))
	for k, l := range m.ledgers {
		ledgers[k] = l
	}
	return memorySnapshot{products: products, ledgers: ledgers}
}

func (m *Memory) restore(s memorySnapshot) {
	m.products = s.products
	m.ledgers = s.ledgers
}

// txView runs against the parent with its lock already held.
type txView struct {
	parent *Memory
}

func (tv *txView) Get(_ context.Context, k ledger.Key) (*ledger.DailyLedger, error) {
	return tv.parent.getLocked(k), nil
}

func (tv *txView) Put(_ context.Context, l *ledger.DailyLedger) error {
	return tv.parent.putLocked(l)
}

func (tv *txView) SetQuantities(_ context.Context, shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	return tv.parent.setQuantitiesLocked(shopID, updates)
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shops = make(map[ledger.ShopID]ledger.Shop)
	m.sizes = make(map[ledger.ShopID]map[ledger.SizeID]ledger.Size)
	m.categories = make(map[ledger.CategoryID]ledger.Category)
	m.products = make(map[ledger.ProductID]ledger.Product)
	m.ledgers = make(map[key]ledger.DailyLedger)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneLedger(l ledger.DailyLedger) ledger.DailyLedger {
	l.OB = cloneGroup(l.OB)
	l.Receipts = cloneGroup(l.Receipts)
	l.Sales = cloneGroup(l.Sales)
	l.Breaks = cloneGroup(l.Breaks)
	l.CB = cloneGroup(l.CB)
	if l.PublishedAt != nil {
		t := *l.PublishedAt
		l.PublishedAt = &t
	}
	return l
}

func cloneGroup(group []ledger.ProductSummary) []ledger.ProductSummary {
	if group == nil {
		return nil
	}
	out := make([]ledger.ProductSummary, len(group))
	for i, ps := range group {
		ps.Sizes = append([]ledger.SizeAmount(nil), ps.Sizes...)
		out[i] = ps
	}
	return out
}
