package service

import (
	"context"
	"errors"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/sections"
	"kyc-core/internal/kyc/status"
	dErrors "kyc-core/pkg/domain-errors"
	"kyc-core/pkg/platform/sentinel"
)

// ProcessResult reports what a processing decision did.
type ProcessResult struct {
	Status    models.Status `json:"status"`
	Timestamp int64         `json:"timestamp"`
}

// Process applies an admin review decision: canceled, refused or unrefused.
// Each sweeps every section to its parking value and stamps the matching
// signature marker. Notes are mandatory.
func (s *Service) Process(ctx context.Context, cred auth.Credential, recordID, statusStr, notes string, notify *bool) (_ *ProcessResult, err error) {
	ctx, done := s.startOp(ctx, "process")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeMustBeAdminToProcess, "")
	}
	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeMissingDataID, "")
	}
	if statusStr == "" {
		return nil, dErrors.New(dErrors.CodeMissingStatus, "")
	}
	requested := models.Status(statusStr)
	switch requested {
	case models.StatusCanceled, models.StatusRefused, models.StatusUnrefused:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidDataStatus, statusStr)
	}
	if notes == "" {
		return nil, dErrors.New(dErrors.CodeStatusEditRequiresNotes, "")
	}

	rec, err := s.cases.ByID(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNoDataFound, "")
	}
	if err != nil {
		return nil, err
	}
	if err := status.ValidatePassage(requested, rec.Status); err != nil {
		return nil, err
	}

	ts := s.nowMillis()
	updated := rec.Clone()
	switch requested {
	case models.StatusCanceled:
		updated.Sections = sections.Sweep(0, updated.Corporate())
		updated.Status = models.StatusCanceled
		updated.SignatureCanceled = ts
		updated.SignatureSubmitted = 0
	case models.StatusRefused:
		// Parked at 3 until an unrefuse sweeps everything back to 1.
		updated.Sections = sections.Sweep(3, updated.Corporate())
		updated.Status = models.StatusRefused
		updated.SignatureRefused = ts
	case models.StatusUnrefused:
		updated.Sections = sections.Sweep(1, updated.Corporate())
		updated.Status = models.StatusSubmitted
	}
	updated.Timestamp = ts
	if err := s.cases.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.logStatusChange(ctx, id, updated.ID, updated.UID, requested, notes)

	if notify == nil || *notify {
		s.sendStatusMail(ctx, updated, string(requested))
	}
	return &ProcessResult{Status: requested, Timestamp: ts}, nil
}

// CheckEditResult is the edit-collision snapshot for one case: the newest
// open marker of another admin (still unsaved), the newest saved marker, and
// the caller's own freshly stamped open marker.
type CheckEditResult struct {
	OwnID string             `json:"_id"`
	Check *models.AdminCheck `json:"check,omitempty"`
	Saved *models.AdminCheck `json:"saved,omitempty"`
}

// AdminCheckEdit stamps that the calling admin opened a case for editing and
// reports whether someone else is already in there.
func (s *Service) AdminCheckEdit(ctx context.Context, cred auth.Credential, caseID string) (_ *CheckEditResult, err error) {
	ctx, done := s.startOp(ctx, "admin_check_edit")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeMustBeAdminToCheckEdit, "")
	}
	if caseID == "" {
		return nil, dErrors.New(dErrors.CodeMissingDataID, "")
	}
	admin := id.AdminEmail()

	checks, err := s.checks.ByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	var check, saved *models.AdminCheck
	for i := range checks {
		c := checks[i]
		if c.SavedTimestamp != 0 {
			if saved == nil || c.SavedTimestamp > saved.SavedTimestamp {
				saved = &c
			}
			continue
		}
		if c.Admin != admin && (check == nil || c.OpenTimestamp > check.OpenTimestamp) {
			check = &c
		}
	}

	if err := s.checks.Open(ctx, caseID, admin, s.nowMillis()); err != nil {
		return nil, err
	}
	own := ""
	after, err := s.checks.ByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, c := range after {
		if c.Admin == admin && c.SavedTimestamp == 0 {
			own = c.ID
			break
		}
	}
	return &CheckEditResult{OwnID: own, Check: check, Saved: saved}, nil
}
