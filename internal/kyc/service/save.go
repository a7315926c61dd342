package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/sections"
	"kyc-core/internal/kyc/status"
	"kyc-core/internal/schema"
	dErrors "kyc-core/pkg/domain-errors"
	"kyc-core/pkg/platform/sentinel"
)

// SaveResult is the sanitized view of one save: what the pipeline changed,
// never the internal-only fields.
type SaveResult struct {
	ID        string                 `json:"_id,omitempty"`
	Status    models.Status          `json:"status,omitempty"`
	Sections  map[schema.Section]int `json:"sections,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// SaveData is the owner/admin mutation entry point.
func (s *Service) SaveData(ctx context.Context, cred auth.Credential, req *models.SaveRequest) (_ *SaveResult, err error) {
	ctx, done := s.startOp(ctx, "save_data")
	defer func() { done(err) }()

	id, uid, err := s.resolveOwner(ctx, cred, req.UID)
	if err != nil {
		return nil, err
	}
	return s.saveData(ctx, id, uid, req)
}

// SaveFormsData runs the same pipeline against a uid carried by a one-time
// form token. No admin concepts apply; the write is tagged with its form
// marker so the submitted lockout does not block it.
func (s *Service) SaveFormsData(ctx context.Context, formToken, formID string, req *models.SaveRequest) (_ *SaveResult, err error) {
	ctx, done := s.startOp(ctx, "save_forms_data")
	defer func() { done(err) }()

	claims, err := s.forms.Verify(formToken)
	if err != nil {
		return nil, err
	}
	req.Form = formMarker(formID, claims.Form)
	return s.saveData(ctx, &auth.Identity{}, claims.UID, req)
}

func formMarker(formID, claimed string) string {
	switch {
	case formID != "":
		return "form" + formID
	case claimed != "":
		return "form" + claimed
	default:
		return "form"
	}
}

// resolveOwner authenticates the credential and pins the uid the operation
// acts on: end users always act on their own uid, admins on the supplied one.
func (s *Service) resolveOwner(ctx context.Context, cred auth.Credential, dataUID int64) (*auth.Identity, int64, error) {
	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, 0, err
	}
	if id.IsAdmin() {
		return id, dataUID, nil
	}
	uid := id.UserID()
	if dataUID != 0 && dataUID != uid {
		return nil, 0, dErrors.New(dErrors.CodeMustBeAdminOrOwner, "")
	}
	return id, uid, nil
}

// saveData is the guarded mutation pipeline: whitelist check, ownership and
// editability rules, optional reset, section recomputation, status engine,
// optimistic concurrency, persistence, audit log and notification.
func (s *Service) saveData(ctx context.Context, id *auth.Identity, uid int64, req *models.SaveRequest) (*SaveResult, error) {
	if err := validateSchema(req); err != nil {
		return nil, err
	}

	var saved *models.Record
	if req.ID != "" {
		rec, err := s.cases.ByID(ctx, req.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoDataFound, "")
		}
		if err != nil {
			return nil, err
		}
		saved = rec
	}

	if err := s.verifySave(ctx, id, uid, req, saved); err != nil {
		return nil, err
	}
	if uid == 0 && saved != nil {
		uid = saved.UID
	}

	if req.Reset {
		if err := s.resetData(ctx, id, uid, req, saved); err != nil {
			return nil, err
		}
		req.Status = string(models.StatusIncomplete)
		main := true
		req.IsMainAccount = &main
	}

	base := saved
	if req.Reset {
		base = nil
	}
	rec := s.mergeRequest(base, uid, id, req)
	if req.Reset && saved != nil {
		rec.ID = saved.ID
	}
	creating := base == nil

	members, err := s.membersFor(ctx, rec)
	if err != nil {
		return nil, err
	}

	wasSubmitted := base != nil && base.SignatureSubmitted != 0
	var sectionChanges map[schema.Section]int
	if wasSubmitted {
		sectionChanges = sections.AutoVerify(rec, members)
	} else {
		sectionChanges = sections.Compute(rec, members)
	}
	applySections(rec, sectionChanges)

	newStatus, notify, err := s.advanceStatus(ctx, uid, req, base, rec, members, creating)
	if err != nil {
		return nil, err
	}

	if newStatus != "" && id.IsAdmin() && req.Notes == "" && adminStatusNeedsNotes(newStatus) {
		return nil, dErrors.New(dErrors.CodeStatusEditRequiresNotes, "")
	}

	rec.Timestamp = s.nowMillis()
	if creating {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		err = s.cases.Insert(ctx, rec)
	} else {
		err = s.cases.Update(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	if newStatus != "" {
		s.logStatusChange(ctx, id, rec.ID, uid, newStatus, req.Notes)
	}
	if id.IsAdmin() && rec.ID != "" {
		if err := s.checks.MarkSaved(ctx, rec.ID, id.AdminEmail(), s.nowMillis()); err != nil &&
			!errors.Is(err, sentinel.ErrNotFound) {
			s.log.Warn("mark admin save", "case_id", rec.ID, "error", err)
		}
	}
	if notify && req.WantsNotify() {
		s.notifyStatus(ctx, rec, newStatus)
	}

	res := &SaveResult{Status: newStatus, Sections: sectionChanges, Timestamp: rec.Timestamp}
	if creating {
		res.ID = rec.ID
	}
	return res, nil
}

// validateSchema rejects any payload key outside the static whitelist. Form
// markers pass by convention.
func validateSchema(req *models.SaveRequest) error {
	for key := range req.Fields {
		if !schema.KnownField(key) && !strings.Contains(key, "form") {
			return dErrors.New(dErrors.NotInSchema(key), "")
		}
	}
	for key := range req.Sections {
		if !schema.KnownSection(key) {
			return dErrors.New(dErrors.NotInSchema(key), "")
		}
	}
	if req.Status != "" && !schema.KnownStatus(req.Status) {
		return dErrors.New(dErrors.NotInSchema("status = "+req.Status), "")
	}
	return nil
}

// verifySave runs the pre-merge guards: somebody must own the record, no
// cross-uid edits, optimistic concurrency, the one-main-account invariant and
// the owner editability ladder.
func (s *Service) verifySave(ctx context.Context, id *auth.Identity, uid int64, req *models.SaveRequest, saved *models.Record) error {
	if uid == 0 && saved == nil {
		return dErrors.New(dErrors.CodeCantCreateAccount, "")
	}
	if saved != nil && uid != 0 && saved.UID != uid {
		return dErrors.New(dErrors.CodeCantEditOtherUser, "")
	}
	if req.VerificationTimestamp != 0 &&
		(saved == nil || saved.Timestamp != req.VerificationTimestamp) {
		return dErrors.New(dErrors.CodeConcurrentModification, "")
	}
	if req.ID == "" && req.MainAccount() && !req.Reset {
		if _, err := s.cases.Main(ctx, uid); err == nil {
			return dErrors.New(dErrors.CodeDuplicateMainAccount, "")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
	}

	main := saved
	if req.MainAccount() || (saved != nil && saved.IsMainAccount) {
		if main == nil {
			// Brand new main account: nothing to lock against yet.
			main = &models.Record{}
		}
	} else {
		lookupUID := uid
		if lookupUID == 0 && saved != nil {
			lookupUID = saved.UID
		}
		rec, err := s.cases.Main(ctx, lookupUID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			main = nil
		case err != nil:
			return err
		default:
			main = rec
		}
	}
	return status.EditableByUser(req, main, id.IsAdmin())
}

// resetData wipes the uid's records and documents so the pipeline can
// recreate the main account from scratch. Only allowed before submission and
// only from the main account itself.
func (s *Service) resetData(ctx context.Context, id *auth.Identity, uid int64, req *models.SaveRequest, saved *models.Record) error {
	if req.ID == "" || saved == nil {
		return dErrors.New(dErrors.CodeCantResetWithoutID, "")
	}
	if saved.SignatureSubmitted != 0 {
		return dErrors.New(dErrors.CodeCantResetSubmitted, "")
	}
	if !saved.IsMainAccount {
		return dErrors.New(dErrors.CodeCantResetMember, "")
	}
	if _, err := s.docs.DeleteByUID(ctx, uid); err != nil {
		return err
	}
	if _, err := s.cases.DeleteByUID(ctx, uid); err != nil {
		return err
	}
	s.logStatusChange(ctx, id, saved.ID, uid, models.StatusReset, req.Notes)
	return nil
}

// mergeRequest folds the request into a working copy of the stored record.
func (s *Service) mergeRequest(saved *models.Record, uid int64, id *auth.Identity, req *models.SaveRequest) *models.Record {
	var rec *models.Record
	if saved != nil {
		rec = saved.Clone()
	} else {
		rec = &models.Record{
			ID:       req.ID,
			Sections: make(map[schema.Section]int),
			Fields:   make(map[string]string),
		}
	}
	rec.UID = uid

	if req.IsMainAccount != nil {
		rec.IsMainAccount = *req.IsMainAccount
	}
	if req.TypeAccount != "" {
		rec.TypeAccount = models.AccountType(req.TypeAccount)
	}
	for key, value := range req.Fields {
		rec.Fields[key] = value
	}
	for key, value := range req.Sections {
		rec.Sections[schema.Section(key)] = value
	}
	if req.IsMonitored != nil {
		rec.IsMonitored = *req.IsMonitored
	}
	if req.Form != "" && !containsForm(rec.Forms, req.Form) {
		rec.Forms = append(rec.Forms, req.Form)
	}
	if id.User != nil {
		rec.CoreUsername = id.User.Username
		rec.CoreEmail = id.User.Email
	}
	return rec
}

func containsForm(forms []string, form string) bool {
	for _, f := range forms {
		if f == form {
			return true
		}
	}
	return false
}

// membersFor fetches the dependent records when the completeness of the
// record under edit depends on them.
func (s *Service) membersFor(ctx context.Context, rec *models.Record) ([]*models.Record, error) {
	if !rec.Corporate() || !rec.IsMainAccount {
		return nil, nil
	}
	return s.cases.Members(ctx, rec.UID)
}

// advanceStatus is the status engine of the pipeline. It mutates rec with the
// status outcome and its side fields, and reports the persisted status change
// (empty when none) plus whether a notification is due.
func (s *Service) advanceStatus(
	ctx context.Context,
	uid int64,
	req *models.SaveRequest,
	base *models.Record,
	rec *models.Record,
	members []*models.Record,
	creating bool,
) (models.Status, bool, error) {
	requested := models.Status(req.Status)

	if !rec.IsMainAccount {
		if requested != "" {
			return "", false, dErrors.New(dErrors.CodeCantSetStatusOnMember, "")
		}
		return "", false, nil
	}

	if creating {
		rec.Status = models.StatusIncomplete
		return models.StatusIncomplete, false, nil
	}

	switch requested {
	case models.StatusCanceled, models.StatusIncomplete, models.StatusResumed:
		return s.cancelOrResume(requested, base, rec, members)

	case models.StatusSubmitted:
		if !sections.Complete(rec, 1) {
			return "", false, dErrors.New(dErrors.CodeDataMissingCantSubmit, "")
		}
		summary, err := s.summary.GetSummary(ctx, uid)
		if err != nil {
			return "", false, err
		}
		rec.Status = models.StatusSubmitted
		rec.SignatureSubmitted = s.nowMillis()
		rec.Summary = summary
		rec.CheckedByAdmin = false
		return models.StatusSubmitted, true, nil

	case models.StatusPending:
		rec.Status = models.StatusPending
		rec.SignaturePending = s.nowMillis()
		return models.StatusPending, false, nil

	case "":
		// No requested status: the only automatic move left is verification,
		// reached once every section sits at the approved value.
		if rec.SignatureSubmitted != 0 && rec.SignatureVerified == 0 && sections.Complete(rec, 2) {
			rec.Status = models.StatusVerified
			rec.SignatureVerified = s.nowMillis()
			return models.StatusVerified, true, nil
		}
		return "", false, nil

	default:
		return "", false, dErrors.New(dErrors.StatusNotAnOption(string(requested)), "")
	}
}

// cancelOrResume handles the owner-driven downward moves. Canceling an
// already submitted case is blocked once any section reached approval.
func (s *Service) cancelOrResume(
	requested models.Status,
	base *models.Record,
	rec *models.Record,
	members []*models.Record,
) (models.Status, bool, error) {
	resolved := status.Resolve(requested)
	if err := status.ValidatePassage(resolved, base.Status); err != nil {
		return "", false, err
	}
	if base.SignatureSubmitted != 0 {
		if sections.VerificationStarted(base, members) {
			return "", false, dErrors.New(dErrors.CodeCantCancelVerifying, "")
		}
		rec.SignatureSubmitted = 0
	}
	if resolved == models.StatusIncomplete {
		applySections(rec, sections.Compute(rec, members))
	}
	if requested == models.StatusResumed {
		// Marks that the kyc document had already been sent before the cancel.
		rec.Sections[schema.SectionKYC] = 1
	}
	rec.Status = resolved
	notify := resolved == models.StatusCanceled
	return resolved, notify, nil
}

// adminStatusNeedsNotes lists the admin-driven moves that must carry a note.
func adminStatusNeedsNotes(st models.Status) bool {
	switch st {
	case models.StatusIncomplete, models.StatusSubmitted, models.StatusVerified:
		return false
	default:
		return true
	}
}

func applySections(rec *models.Record, changes map[schema.Section]int) {
	for section, value := range changes {
		rec.Sections[section] = value
	}
}
