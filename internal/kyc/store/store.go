// Package store defines the persistence facade for the compliance case
// collections: case records, uploaded documents, the status log, admin check
// markers and recently-viewed markers. Implementations are interface-driven
// so the in-memory and postgres backends stay swappable without rewiring
// business code.
package store

import (
	"context"

	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/search"
)

// FindQuery is the filter envelope of the case listing surface. Zero-valued
// members are inactive; active members combine with AND.
type FindQuery struct {
	Search      *search.Query
	Statuses    []models.Status
	TypeAccount models.AccountType
	UIDs        []int64
	MainOnly    bool
	Monitored   *bool
	Page        models.Page
}

type CaseStore interface {
	Insert(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
	ByID(ctx context.Context, id string) (*models.Record, error)
	// Main returns the main account of a uid, or sentinel.ErrNotFound.
	Main(ctx context.Context, uid int64) (*models.Record, error)
	// Members returns the dependent member records of a uid, main excluded.
	Members(ctx context.Context, uid int64) ([]*models.Record, error)
	// ByUID returns every record of a uid, main account first.
	ByUID(ctx context.Context, uid int64) ([]*models.Record, error)
	Find(ctx context.Context, q FindQuery) ([]*models.Record, error)
	Delete(ctx context.Context, id string) error
	// DeleteByUID wipes all records of a uid and reports how many went.
	DeleteByUID(ctx context.Context, uid int64) (int, error)
}

type DocumentStore interface {
	Upsert(ctx context.Context, doc *models.Document) error
	ByID(ctx context.Context, id string) (*models.Document, error)
	ByUID(ctx context.Context, uid int64, page models.Page) ([]*models.Document, error)
	Delete(ctx context.Context, id string) error
	DeleteByUID(ctx context.Context, uid int64) (int, error)
}

type LogStore interface {
	Append(ctx context.Context, entry models.StatusLogEntry) error
	// FindLogs returns matching entries in chronological order.
	FindLogs(ctx context.Context, filter models.LogFilter) ([]models.StatusLogEntry, error)
}

type AdminCheckStore interface {
	// Open stamps that an admin opened a case for editing, keyed by
	// (case, admin).
	Open(ctx context.Context, caseID, admin string, ts int64) error
	// MarkSaved stamps the admin's last save on an existing open marker.
	MarkSaved(ctx context.Context, caseID, admin string, ts int64) error
	ByCase(ctx context.Context, caseID string) ([]models.AdminCheck, error)
}

type RecentStore interface {
	// Touch upserts a (admin, uid) view marker and prunes the admin's list
	// beyond the retention cap.
	Touch(ctx context.Context, view models.RecentView) error
	// ByAdmin returns the admin's markers, most recent first.
	ByAdmin(ctx context.Context, admin string) ([]models.RecentView, error)
}

// RecentCap is how many recently-viewed markers an admin keeps.
const RecentCap = 25
