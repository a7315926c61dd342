// Package models defines the persistent shapes of the case lifecycle:
// case records, uploaded documents, the append-only status log, admin check
// markers and recently-viewed markers.
package models

import (
	"time"

	"kyc-core/internal/schema"
)

type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountCorporate  AccountType = "corporate"
)

// Status is the overall lifecycle state of a main account. Two pseudo
// statuses exist only as transition requests: "unrefused" persists as
// submitted and "resumed" persists as incomplete.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusSubmitted  Status = "submitted"
	StatusPending    Status = "pending"
	StatusCanceled   Status = "canceled"
	StatusRefused    Status = "refused"
	StatusVerified   Status = "verified"

	StatusUnrefused Status = "unrefused"
	StatusResumed   Status = "resumed"

	// StatusReset is never persisted; it only appears in the status log when
	// a main account is wiped and recreated.
	StatusReset Status = "reset"
)

// Record is one case record: the main account of a uid, or a dependent
// member sharing that uid. Only main accounts carry Status.
type Record struct {
	ID            string
	UID           int64
	IsMainAccount bool
	TypeAccount   AccountType
	Status        Status

	// Sections maps section name to 0 (incomplete), 1 (submitted/complete)
	// or 2 (approved). The refuse sweep parks sections at 3 until the case
	// is unrefused.
	Sections map[schema.Section]int

	// Signature markers are unix-millisecond stamps, 0 meaning absent. They
	// are presence-tested, never compared.
	SignatureSubmitted int64
	SignatureVerified  int64
	SignatureCanceled  int64
	SignatureRefused   int64
	SignaturePending   int64

	CheckedByAdmin bool
	IsMonitored    bool

	// Summary is the financial snapshot attached at submission. Hidden from
	// end users.
	Summary map[string]any

	CoreUsername string
	CoreEmail    string

	// Forms records which one-time form flows touched this record.
	Forms []string

	// Fields holds the free-form whitelisted domain data.
	Fields map[string]string

	// Timestamp is the last-write time in unix milliseconds; it doubles as
	// the optimistic concurrency token.
	Timestamp int64
}

func (r *Record) Corporate() bool { return r.TypeAccount == AccountCorporate }

func (r *Record) HasField(key string) bool {
	_, ok := r.Fields[key]
	return ok
}

func (r *Record) Section(s schema.Section) int {
	return r.Sections[s]
}

// Clone returns a deep copy so store reads never alias service mutations.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Sections = make(map[schema.Section]int, len(r.Sections))
	for k, v := range r.Sections {
		out.Sections[k] = v
	}
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	if r.Summary != nil {
		out.Summary = make(map[string]any, len(r.Summary))
		for k, v := range r.Summary {
			out.Summary[k] = v
		}
	}
	out.Forms = append([]string(nil), r.Forms...)
	return &out
}

// Document is an uploaded file's metadata; the payload itself lives in
// object storage under Key.
type Document struct {
	ID        string
	UID       int64
	URL       string
	Key       string
	Filename  string
	Type      string
	Form      string
	Remark    string
	AccountID string
	IsPrivate bool
	Timestamp int64
}

// StatusLogEntry is one append-only audit record. The log is the sole input
// of the analytics engine.
type StatusLogEntry struct {
	Actor       string
	Status      Status
	UID         int64
	Notes       string
	NetWorthUSD int64
	Date        time.Time
	Timestamp   int64
}

// ActorUser is the actor value recorded for owner-originated changes.
const ActorUser = "user"

// AdminCheck marks that an admin opened or saved a case, keyed by
// (CaseID, Admin). Open markers without a saved stamp power the
// "another admin is viewing this" hint.
type AdminCheck struct {
	ID             string
	CaseID         string
	Admin          string
	OpenTimestamp  int64
	SavedTimestamp int64
}

// RecentView records that an admin viewed a uid's main account.
type RecentView struct {
	ID        string
	Admin     string
	UID       int64
	CaseID    string
	Timestamp int64
}

// Page is the common pagination envelope.
type Page struct {
	Offset    int
	Amount    int
	Order     string
	Direction int
}

// Normalize applies the defaults used across the read surface.
func (p Page) Normalize() Page {
	if p.Amount <= 0 {
		p.Amount = 25
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Direction == 0 {
		p.Direction = 1
	}
	return p
}
