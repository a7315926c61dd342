package service

import (
	"context"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/search"
	"kyc-core/internal/kyc/store"
	dErrors "kyc-core/pkg/domain-errors"
)

// TypeEnhanced lists monitored cases instead of a status; full-access admins
// only.
const TypeEnhanced = "enhanced"

// FindResult is the admin case listing: the filtered page, plus (on the
// first page of a typed listing) the caller's recently viewed cases in the
// same state.
type FindResult struct {
	Filter   []View `json:"filter"`
	Recently []View `json:"recently,omitempty"`
}

// FindByType is the admin listing surface: filter the case collection by
// status and/or free-text search, paginated.
func (s *Service) FindByType(ctx context.Context, cred auth.Credential, typeStr, searchStr string, page models.Page) (_ *FindResult, err error) {
	ctx, done := s.startOp(ctx, "find_by_type")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := findAccessRestriction(id, typeStr); err != nil {
		return nil, err
	}

	query := listQuery(typeStr, searchStr)
	query.Page = page.Normalize()
	if query.Page.Order == "" {
		query.Page.Direction = -1
	}

	recs, err := s.cases.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	result := &FindResult{Filter: filterViews(recs)}

	if typeStr != "" && page.Offset == 0 {
		recently, err := s.recentCases(ctx, id, typeStr)
		if err != nil {
			return nil, err
		}
		result.Recently = recently
	}
	return result, nil
}

// findAccessRestriction is the listing ladder: admins only; the most
// restricted tier sees nothing but pending; the monitored list is reserved
// for full access.
func findAccessRestriction(id *auth.Identity, typeStr string) error {
	if !id.IsAdmin() {
		return dErrors.New(dErrors.CodeMustBeAdminToFind, "")
	}
	if typeStr != string(models.StatusPending) && !auth.CheckAccessLevel(id, auth.LevelRestricted) {
		return dErrors.New(dErrors.CodeRestrictedAccess, "")
	}
	if typeStr == TypeEnhanced && !auth.CheckAccessLevel(id, auth.LevelFull) {
		return dErrors.New(dErrors.CodeRestrictedAccess, "")
	}
	return nil
}

func listQuery(typeStr, searchStr string) store.FindQuery {
	query := store.FindQuery{Search: search.Parse(searchStr)}
	switch {
	case typeStr == TypeEnhanced:
		monitored := true
		query.Monitored = &monitored
	case typeStr != "":
		query.Statuses = []models.Status{models.Status(typeStr)}
	}
	return query
}

// recentCases resolves the admin's recently viewed uids back to case records
// matching the queried type.
func (s *Service) recentCases(ctx context.Context, id *auth.Identity, typeStr string) ([]View, error) {
	views, err := s.recents.ByAdmin(ctx, id.AdminEmail())
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, nil
	}
	uids := make([]int64, 0, len(views))
	for _, v := range views {
		uids = append(uids, v.UID)
	}

	query := listQuery(typeStr, "")
	query.UIDs = uids
	query.Page = models.Page{Amount: store.RecentCap, Direction: -1}.Normalize()

	recs, err := s.cases.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	return filterViews(recs), nil
}

// filterViews is the condensed listing row: enough for the review queue
// table, nothing more.
func filterViews(recs []*models.Record) []View {
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		v := View{
			"_id":              rec.ID,
			"uid":              rec.UID,
			"core_username":    rec.CoreUsername,
			"core_email":       rec.CoreEmail,
			"status":           string(rec.Status),
			"type_account":     string(rec.TypeAccount),
			"is_main_account":  rec.IsMainAccount,
			"checked_by_admin": rec.CheckedByAdmin,
			"timestamp":        rec.Timestamp,
		}
		for _, key := range []string{"first_name", "last_name", "resid_country", "language"} {
			if value, ok := rec.Fields[key]; ok {
				v[key] = value
			}
		}
		if rec.Summary != nil {
			v["summary"] = rec.Summary
		}
		out = append(out, v)
	}
	return out
}
