package service

import (
	"context"
	"errors"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/search"
	"kyc-core/internal/kyc/status"
	"kyc-core/internal/kyc/store"
	dErrors "kyc-core/pkg/domain-errors"
	"kyc-core/pkg/platform/sentinel"
)

// Collections the fetch/delete surface exposes.
const (
	CollectionCompliances = "compliances"
	CollectionDocuments   = "documents"
)

// View is one redacted record or document as the caller may see it. The key
// set depends on who is asking.
type View map[string]any

// Fetch returns a uid's case records or documents, redacted for the caller.
// Reading a submitted main account as an admin flips its checked_by_admin
// flag and records a recently-viewed marker.
func (s *Service) Fetch(ctx context.Context, cred auth.Credential, collection string, uid int64, page models.Page) (_ []View, err error) {
	ctx, done := s.startOp(ctx, "fetch")
	defer func() { done(err) }()

	if collection != CollectionCompliances && collection != CollectionDocuments {
		return nil, dErrors.New(dErrors.CodeInvalidCollection, collection)
	}
	id, targetUID, err := s.resolveOwner(ctx, cred, uid)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		targetUID = id.UserID()
	} else if targetUID == 0 {
		return nil, dErrors.New(dErrors.CodeMissingUID, "")
	}

	if collection == CollectionDocuments {
		return s.fetchDocuments(ctx, id, targetUID, page)
	}
	return s.fetchCases(ctx, id, targetUID, page)
}

func (s *Service) fetchCases(ctx context.Context, id *auth.Identity, uid int64, page models.Page) ([]View, error) {
	recs, err := s.cases.ByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	recs = pageRecords(recs, page.Normalize())

	if id.IsAdmin() {
		if err := s.markViewed(ctx, id, recs); err != nil {
			s.log.Warn("mark case viewed", "uid", uid, "error", err)
		}
	}

	views := make([]View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, recordView(rec, id))
	}
	return views, nil
}

func (s *Service) fetchDocuments(ctx context.Context, id *auth.Identity, uid int64, page models.Page) ([]View, error) {
	docs, err := s.docs.ByUID(ctx, uid, page.Normalize())
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(docs))
	for _, doc := range docs {
		if !id.IsAdmin() && doc.IsPrivate {
			continue
		}
		views = append(views, documentView(doc, id))
	}
	return views, nil
}

// markViewed flips checked_by_admin on a freshly read submitted main account
// and records the view in the admin's recents.
func (s *Service) markViewed(ctx context.Context, id *auth.Identity, recs []*models.Record) error {
	for _, rec := range recs {
		if !rec.IsMainAccount {
			continue
		}
		if rec.SignatureSubmitted != 0 && !rec.CheckedByAdmin {
			checked := rec.Clone()
			checked.CheckedByAdmin = true
			if err := s.cases.Update(ctx, checked); err != nil {
				return err
			}
			rec.CheckedByAdmin = true
		}
		return s.recents.Touch(ctx, models.RecentView{
			Admin:     id.AdminEmail(),
			UID:       rec.UID,
			CaseID:    rec.ID,
			Timestamp: s.nowMillis(),
		})
	}
	return nil
}

// Delete removes one non-main record or document owned by the resolved uid.
func (s *Service) Delete(ctx context.Context, cred auth.Credential, collection, recordID string, uid int64) (err error) {
	ctx, done := s.startOp(ctx, "delete")
	defer func() { done(err) }()

	if recordID == "" {
		return dErrors.New(dErrors.CodeMissingDataID, "")
	}
	if collection == "" {
		return dErrors.New(dErrors.CodeMissingCollection, "")
	}
	if collection != CollectionCompliances && collection != CollectionDocuments {
		return dErrors.New(dErrors.CodeInvalidDeleteTarget, collection)
	}

	id, targetUID, err := s.resolveOwner(ctx, cred, uid)
	if err != nil {
		return err
	}
	if !id.IsAdmin() {
		targetUID = id.UserID()
	}
	if targetUID == 0 {
		return dErrors.New(dErrors.CodeMissingUID, "")
	}

	if collection == CollectionDocuments {
		return s.deleteDocument(ctx, id, recordID, targetUID)
	}
	return s.deleteCase(ctx, id, recordID, targetUID)
}

func (s *Service) deleteCase(ctx context.Context, id *auth.Identity, recordID string, uid int64) error {
	rec, err := s.cases.ByID(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNoDataFound, "")
	}
	if err != nil {
		return err
	}
	if rec.UID != uid {
		return dErrors.New(dErrors.CodeNoDataFound, "")
	}
	if rec.IsMainAccount {
		return dErrors.New(dErrors.CodeCantDeleteMainAccount, "")
	}
	if err := s.requireEditable(ctx, id, uid); err != nil {
		return err
	}
	return s.cases.Delete(ctx, recordID)
}

func (s *Service) deleteDocument(ctx context.Context, id *auth.Identity, recordID string, uid int64) error {
	doc, err := s.docs.ByID(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNoDataFound, "")
	}
	if err != nil {
		return err
	}
	if doc.UID != uid {
		return dErrors.New(dErrors.CodeNoDataFound, "")
	}
	if err := s.requireEditable(ctx, id, uid); err != nil {
		return err
	}
	return s.docs.Delete(ctx, recordID)
}

// requireEditable applies the owner lockout ladder of the uid's main account
// to a bare (no-payload) mutation like delete.
func (s *Service) requireEditable(ctx context.Context, id *auth.Identity, uid int64) error {
	main, err := s.cases.Main(ctx, uid)
	if errors.Is(err, sentinel.ErrNotFound) {
		main = nil
	} else if err != nil {
		return err
	}
	return status.EditableByUser(&models.SaveRequest{}, main, id.IsAdmin())
}

// emailQuery is an exact core_email lookup.
func emailQuery(email string) store.FindQuery {
	return store.FindQuery{
		Search: &search.Query{Clauses: []search.Clause{
			{{Field: search.FieldEmail, Value: email, Exact: true}},
		}},
	}
}

// VerifiedUser reports whether a uid or email belongs to a case that reached
// verification. No authentication: callers only learn a boolean.
func (s *Service) VerifiedUser(ctx context.Context, uid int64, email string) (_ bool, err error) {
	ctx, done := s.startOp(ctx, "verified_user")
	defer func() { done(err) }()

	var recs []*models.Record
	switch {
	case uid != 0:
		recs, err = s.cases.ByUID(ctx, uid)
	case email != "":
		recs, err = s.cases.Find(ctx, emailQuery(email))
	default:
		return false, dErrors.New(dErrors.CodeMissingUID, "")
	}
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if rec.SignatureVerified != 0 {
			return true, nil
		}
	}
	return false, nil
}

// recordView shapes one case record for the caller: end users never see the
// administrative fields, restricted admins never see the monitored flag.
func recordView(rec *models.Record, id *auth.Identity) View {
	v := View{
		"_id":             rec.ID,
		"is_main_account": rec.IsMainAccount,
		"type_account":    string(rec.TypeAccount),
		"status":          string(rec.Status),
		"core_username":   rec.CoreUsername,
		"core_email":      rec.CoreEmail,
		"timestamp":       rec.Timestamp,
	}
	for section, value := range rec.Sections {
		v[string(section)] = value
	}
	for key, value := range rec.Fields {
		v[key] = value
	}
	for _, form := range rec.Forms {
		v[form] = true
	}
	addSignature(v, "digital_signature_submitted", rec.SignatureSubmitted)
	addSignature(v, "digital_signature_verified", rec.SignatureVerified)
	addSignature(v, "digital_signature_canceled", rec.SignatureCanceled)
	addSignature(v, "digital_signature_refused", rec.SignatureRefused)
	addSignature(v, "digital_signature_pending", rec.SignaturePending)

	if id.IsAdmin() {
		v["uid"] = rec.UID
		v["checked_by_admin"] = rec.CheckedByAdmin
		if rec.Summary != nil {
			v["summary"] = rec.Summary
		}
		if auth.CheckAccessLevel(id, auth.LevelFull) {
			v["is_monitored"] = rec.IsMonitored
		}
	}
	return v
}

func addSignature(v View, key string, ts int64) {
	if ts != 0 {
		v[key] = ts
	}
}

func documentView(doc *models.Document, id *auth.Identity) View {
	v := View{
		"_id":        doc.ID,
		"url":        doc.URL,
		"key":        doc.Key,
		"filename":   doc.Filename,
		"type":       doc.Type,
		"remark":     doc.Remark,
		"account_id": doc.AccountID,
		"is_private": doc.IsPrivate,
		"timestamp":  doc.Timestamp,
	}
	if doc.Form != "" {
		v["form"] = doc.Form
	}
	if id.IsAdmin() {
		v["uid"] = doc.UID
	}
	return v
}

func pageRecords(recs []*models.Record, page models.Page) []*models.Record {
	if page.Offset >= len(recs) {
		return nil
	}
	recs = recs[page.Offset:]
	if page.Amount > 0 && page.Amount < len(recs) {
		recs = recs[:page.Amount]
	}
	return recs
}
