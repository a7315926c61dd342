package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kyc-core/internal/kyc/models"
	"kyc-core/pkg/platform/sentinel"
)

// InMemoryCaseStore holds case records keyed by id. Reads and writes deep
// copy so callers never alias store state.
type InMemoryCaseStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewMemoryCases() *InMemoryCaseStore {
	return &InMemoryCaseStore{records: make(map[string]*models.Record)}
}

func (s *InMemoryCaseStore) Insert(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryCaseStore) Update(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryCaseStore) ByID(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryCaseStore) Main(_ context.Context, uid int64) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.UID == uid && rec.IsMainAccount {
			return rec.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryCaseStore) Members(_ context.Context, uid int64) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, rec := range s.records {
		if rec.UID == uid && !rec.IsMainAccount {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out, models.Page{Order: "timestamp", Direction: 1})
	return out, nil
}

func (s *InMemoryCaseStore) ByUID(_ context.Context, uid int64) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, rec := range s.records {
		if rec.UID == uid {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out, models.Page{Order: "timestamp", Direction: 1})
	// Main account leads regardless of write order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsMainAccount && !out[j].IsMainAccount
	})
	return out, nil
}

func (s *InMemoryCaseStore) Find(_ context.Context, q FindQuery) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, rec := range s.records {
		if !matchesQuery(rec, q) {
			continue
		}
		out = append(out, rec.Clone())
	}
	page := q.Page.Normalize()
	sortRecords(out, page)
	return paginate(out, page), nil
}

func (s *InMemoryCaseStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *InMemoryCaseStore) DeleteByUID(_ context.Context, uid int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.UID == uid {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func matchesQuery(rec *models.Record, q FindQuery) bool {
	if q.MainOnly && !rec.IsMainAccount {
		return false
	}
	if q.TypeAccount != "" && rec.TypeAccount != q.TypeAccount {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if rec.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.UIDs) > 0 {
		found := false
		for _, uid := range q.UIDs {
			if rec.UID == uid {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Monitored != nil && rec.IsMonitored != *q.Monitored {
		return false
	}
	if q.Search != nil && !q.Search.Match(rec) {
		return false
	}
	return true
}

func sortRecords(recs []*models.Record, page models.Page) {
	less := func(a, b *models.Record) bool {
		switch page.Order {
		case "uid":
			if a.UID != b.UID {
				return a.UID < b.UID
			}
		default:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if page.Direction < 0 {
			return less(recs[j], recs[i])
		}
		return less(recs[i], recs[j])
	})
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Amount
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

// InMemoryDocumentStore holds document metadata keyed by id.
type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func NewMemoryDocuments() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: make(map[string]models.Document)}
}

func (s *InMemoryDocumentStore) Upsert(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = *doc
	return nil
}

func (s *InMemoryDocumentStore) ByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[id]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

func (s *InMemoryDocumentStore) ByUID(_ context.Context, uid int64, page models.Page) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Document
	for id := range s.docs {
		doc := s.docs[id]
		if doc.UID == uid {
			out = append(out, &doc)
		}
	}
	page = page.Normalize()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if page.Direction < 0 {
			a, b = b, a
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})
	return paginate(out, page), nil
}

func (s *InMemoryDocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *InMemoryDocumentStore) DeleteByUID(_ context.Context, uid int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, doc := range s.docs {
		if doc.UID == uid {
			delete(s.docs, id)
			removed++
		}
	}
	return removed, nil
}

// InMemoryLogStore appends status log entries in arrival order.
type InMemoryLogStore struct {
	mu      sync.RWMutex
	entries []models.StatusLogEntry
}

func NewMemoryLogs() *InMemoryLogStore {
	return &InMemoryLogStore{}
}

func (s *InMemoryLogStore) Append(_ context.Context, entry models.StatusLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryLogStore) FindLogs(_ context.Context, filter models.LogFilter) ([]models.StatusLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StatusLogEntry
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// InMemoryAdminCheckStore keys markers by (case, admin).
type InMemoryAdminCheckStore struct {
	mu     sync.RWMutex
	checks map[string]map[string]*models.AdminCheck
}

func NewMemoryAdminChecks() *InMemoryAdminCheckStore {
	return &InMemoryAdminCheckStore{checks: make(map[string]map[string]*models.AdminCheck)}
}

func (s *InMemoryAdminCheckStore) Open(_ context.Context, caseID, admin string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAdmin, exists := s.checks[caseID]
	if !exists {
		byAdmin = make(map[string]*models.AdminCheck)
		s.checks[caseID] = byAdmin
	}
	check, exists := byAdmin[admin]
	if !exists {
		check = &models.AdminCheck{
			ID:     uuid.NewString(),
			CaseID: caseID,
			Admin:  admin,
		}
		byAdmin[admin] = check
	}
	check.OpenTimestamp = ts
	// Reopening puts the marker back into "editing, not yet saved".
	check.SavedTimestamp = 0
	return nil
}

func (s *InMemoryAdminCheckStore) MarkSaved(_ context.Context, caseID, admin string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAdmin := s.checks[caseID]
	check, exists := byAdmin[admin]
	if !exists {
		return sentinel.ErrNotFound
	}
	check.SavedTimestamp = ts
	return nil
}

func (s *InMemoryAdminCheckStore) ByCase(_ context.Context, caseID string) ([]models.AdminCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AdminCheck
	for _, check := range s.checks[caseID] {
		out = append(out, *check)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Admin < out[j].Admin })
	return out, nil
}

// InMemoryRecentStore keeps each admin's last viewed uids, newest first,
// pruned to RecentCap.
type InMemoryRecentStore struct {
	mu    sync.RWMutex
	views map[string][]models.RecentView
}

func NewMemoryRecents() *InMemoryRecentStore {
	return &InMemoryRecentStore{views: make(map[string][]models.RecentView)}
}

func (s *InMemoryRecentStore) Touch(_ context.Context, view models.RecentView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.views[view.Admin]
	for i, existing := range list {
		if existing.UID == view.UID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if view.ID == "" {
		view.ID = uuid.NewString()
	}
	list = append([]models.RecentView{view}, list...)
	if len(list) > RecentCap {
		list = list[:RecentCap]
	}
	s.views[view.Admin] = list
	return nil
}

func (s *InMemoryRecentStore) ByAdmin(_ context.Context, admin string) ([]models.RecentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.RecentView(nil), s.views[admin]...), nil
}
