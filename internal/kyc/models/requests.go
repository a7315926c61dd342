package models

// SaveRequest is a single case mutation as it arrives at the pipeline,
// already split into control keys and free-form fields.
type SaveRequest struct {
	ID            string
	UID           int64
	IsMainAccount *bool
	TypeAccount   string

	// Status is the requested transition, possibly a pseudo status
	// (resumed, unrefused) or empty when the caller only sends data.
	Status string

	Reset bool
	Notes string

	// Notify defaults to true; senders opt out explicitly.
	Notify *bool

	// VerificationTimestamp, when non-zero, must match the stored record
	// timestamp or the write is rejected.
	VerificationTimestamp int64

	IsMonitored *bool

	// Sections carries explicit section-status writes (admin review).
	Sections map[string]int

	// Fields carries whitelisted free-form domain data.
	Fields map[string]string

	// Form tags writes that came through a one-time form token.
	Form string
}

// WantsNotify reports whether side-effect notifications are enabled.
func (r *SaveRequest) WantsNotify() bool {
	return r.Notify == nil || *r.Notify
}

// MainAccount reports the declared main-account flag, defaulting to false.
func (r *SaveRequest) MainAccount() bool {
	return r.IsMainAccount != nil && *r.IsMainAccount
}

// FromForm reports whether the request originated from a special form flow.
func (r *SaveRequest) FromForm() bool { return r.Form != "" }

// DocumentUpload is one element of a saveDocuments payload: either a fresh
// upload (Data set) or a metadata-only update of an existing document (ID
// set, no Data).
type DocumentUpload struct {
	ID        string
	UID       int64
	Data      []byte
	Filename  string
	Type      string
	Form      string
	Remark    string
	AccountID string
	IsPrivate bool
}

// DocumentResult is what saveDocuments returns per document.
type DocumentResult struct {
	ID        string `json:"_id"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// LogFilter is the AND filter shared by statusLogs and analytics.
type LogFilter struct {
	UIDs     []int64
	Statuses []Status
	Actors   []string
	MinWorth int64
	MaxWorth int64
	Start    int64
	End      int64
}

// Matches evaluates the filter against one log entry. Zero-valued filter
// members are inactive.
func (f LogFilter) Matches(e StatusLogEntry) bool {
	if len(f.UIDs) > 0 && !containsInt64(f.UIDs, e.UID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if len(f.Actors) > 0 && !containsString(f.Actors, e.Actor) {
		return false
	}
	if f.MinWorth != 0 && e.NetWorthUSD < f.MinWorth {
		return false
	}
	if f.MaxWorth != 0 && e.NetWorthUSD >= f.MaxWorth {
		return false
	}
	if f.Start != 0 && e.Timestamp < f.Start {
		return false
	}
	if f.End != 0 && e.Timestamp >= f.End {
		return false
	}
	return true
}

// WithoutStatuses returns a copy of the filter with the status clause
// removed; the final-status aggregation filters on status only after
// collapsing to the latest entry per uid.
func (f LogFilter) WithoutStatuses() LogFilter {
	f.Statuses = nil
	return f
}

// WithoutTimeStart returns a copy with the start bound cleared, keeping the
// end bound. Cycle-time pairing reaches back before the report window for
// the first entry into the preceding state.
func (f LogFilter) WithoutTimeStart() LogFilter {
	f.Start = 0
	return f
}

func containsInt64(list []int64, v int64) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, v Status) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
