// Package status is the pure state machine over case lifecycle states. It
// validates requested transitions against the persisted status and decides
// which writes an owner may still perform.
package status

import (
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/schema"
	dErrors "kyc-core/pkg/domain-errors"
)

// ValidatePassage checks a requested transition against the current
// persisted status. An empty old status means the record does not exist yet.
// Statuses without an entry here (notably verified, which is only ever
// reached by the automatic section check) pass through; the pipeline decides
// whether they are reachable at all.
func ValidatePassage(newStatus, oldStatus models.Status) error {
	valid := true
	switch newStatus {
	case models.StatusRefused, models.StatusCanceled:
		valid = oldStatus == models.StatusSubmitted || oldStatus == models.StatusPending
	case models.StatusIncomplete:
		valid = oldStatus == models.StatusCanceled || oldStatus == ""
	case models.StatusSubmitted:
		valid = oldStatus == models.StatusIncomplete ||
			oldStatus == models.StatusRefused ||
			oldStatus == models.StatusUnrefused ||
			oldStatus == ""
	case models.StatusPending:
		valid = oldStatus == models.StatusSubmitted
	case models.StatusUnrefused:
		valid = oldStatus == models.StatusRefused
	case models.StatusResumed:
		valid = oldStatus == models.StatusCanceled
	}
	if !valid {
		return dErrors.New(dErrors.CantSetStatus(string(newStatus), string(oldStatus)), "")
	}
	return nil
}

// Resolve maps a pseudo transition request to the status that actually gets
// persisted.
func Resolve(requested models.Status) models.Status {
	switch requested {
	case models.StatusResumed:
		return models.StatusIncomplete
	case models.StatusUnrefused:
		return models.StatusSubmitted
	default:
		return requested
	}
}

// AdminRequired reports whether a save request carries anything only an
// admin may write: privileged status values, the monitored flag, section
// review statuses, or the approved kyc marker.
func AdminRequired(req *models.SaveRequest) bool {
	if req.Status != "" && schema.AdminOnlyStatus(req.Status) {
		return true
	}
	if req.IsMonitored != nil {
		return true
	}
	for key, value := range req.Sections {
		if schema.AdminOnlySection(schema.Section(key), value) {
			return true
		}
	}
	return false
}

// EditableByUser enforces the owner lockout ladder against the uid's main
// account. It is called for every write, member records included, since a
// submitted main account freezes its dependents too. Writes tagged with a
// form marker bypass the submitted lockout: form flows collect supplementary
// data after submission.
func EditableByUser(req *models.SaveRequest, main *models.Record, isAdmin bool) error {
	if main == nil {
		return dErrors.New(dErrors.CodeNoMainAccount, "")
	}
	if !isAdmin && AdminRequired(req) {
		return dErrors.New(dErrors.CodeMustBeAdminToChangeData, "")
	}
	requested := models.Status(req.Status)
	if !isAdmin &&
		main.SignatureSubmitted != 0 &&
		requested != models.StatusCanceled &&
		main.Status != models.StatusPending &&
		!req.FromForm() {
		return dErrors.New(dErrors.CodeCantEditSubmitted, "")
	}
	if main.Status == models.StatusCanceled &&
		requested != models.StatusIncomplete &&
		requested != models.StatusResumed {
		return dErrors.New(dErrors.CodeCantEditCanceled, "")
	}
	if main.Status == models.StatusRefused {
		return dErrors.New(dErrors.CodeCantEditRefused, "")
	}
	if requested != "" {
		return ValidatePassage(requested, main.Status)
	}
	return nil
}
