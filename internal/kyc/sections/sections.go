// Package sections computes section completeness from raw field data and
// account topology. It is a pure function of the merged record plus, for
// corporate identity, the uid's dependent member records.
package sections

import (
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/schema"
)

// Compute returns the section-status changes implied by the record's current
// fields: a section reaches 1 once every required field is present. Already
// reached statuses are left untouched, with one exception: the corporate
// main-account identity section is re-evaluated on every write and may
// regress to 0 when a dependent member is missing or incomplete.
func Compute(rec *models.Record, members []*models.Record) map[schema.Section]int {
	changes := make(map[schema.Section]int)
	corp := rec.Corporate()
	for _, section := range schema.CompletableSections {
		if sectionComplete(rec, section, corp, members) {
			changes[section] = 1
		} else if corp && section == schema.SectionIdentity && rec.IsMainAccount {
			changes[section] = 0
		}
	}
	return changes
}

func sectionComplete(rec *models.Record, section schema.Section, corp bool, members []*models.Record) bool {
	corporateMainIdentity := section == schema.SectionIdentity && corp && rec.IsMainAccount
	if rec.Section(section) != 0 && !corporateMainIdentity {
		// Monotonic: a reached section is never recomputed downward.
		return false
	}
	if !identityComplete(rec, section, corp, members) {
		return false
	}
	for _, key := range schema.RequiredFields(section, corp) {
		if !rec.HasField(key) {
			return false
		}
	}
	return true
}

func identityComplete(rec *models.Record, section schema.Section, corp bool, members []*models.Record) bool {
	if section != schema.SectionIdentity {
		return true
	}
	if corp && rec.IsMainAccount {
		return allMembersAt(members, 1)
	}
	return completeBundles(rec) > 1
}

// completeBundles counts fully present identity-document groups; individuals
// need at least two of the four alternatives.
func completeBundles(rec *models.Record) int {
	count := 0
	for _, bundle := range schema.IdentityDocumentBundles {
		complete := true
		for _, key := range bundle {
			if !rec.HasField(key) {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}
	return count
}

// AutoVerify is the post-submission mode: once a corporate main account is
// submitted but not yet verified, its identity section tracks whether every
// member has been fully approved (2) or merely remains complete (1).
func AutoVerify(rec *models.Record, members []*models.Record) map[schema.Section]int {
	if !rec.Corporate() ||
		rec.SignatureSubmitted == 0 ||
		rec.SignatureVerified != 0 ||
		!rec.IsMainAccount {
		return nil
	}
	if allMembersAt(members, 2) {
		return map[schema.Section]int{schema.SectionIdentity: 2}
	}
	return map[schema.Section]int{schema.SectionIdentity: 1}
}

func allMembersAt(members []*models.Record, value int) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.Section(schema.SectionContact) != value ||
			m.Section(schema.SectionAddress) != value ||
			m.Section(schema.SectionIdentity) != value {
			return false
		}
	}
	return true
}

// Sweep returns every required section (the kyc marker included) set to the
// same value; the cancel, refuse and unrefuse flows use it to reset the
// whole map at once.
func Sweep(value int, corporate bool) map[schema.Section]int {
	out := map[schema.Section]int{
		schema.SectionKYC:       value,
		schema.SectionContact:   value,
		schema.SectionAddress:   value,
		schema.SectionIdentity:  value,
		schema.SectionFinancial: value,
	}
	if corporate {
		out[schema.SectionCorporate] = value
	}
	return out
}

// Complete reports whether every required section sits exactly at the given
// value. Submission needs the full map at 1; automatic verification needs it
// at 2.
func Complete(rec *models.Record, value int) bool {
	for section, want := range Sweep(value, rec.Corporate()) {
		if rec.Section(section) != want {
			return false
		}
	}
	return true
}

// VerificationStarted reports whether any section of the main account or its
// dependents has already been approved; canceling is blocked past that
// point.
func VerificationStarted(main *models.Record, members []*models.Record) bool {
	records := append([]*models.Record{main}, members...)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, section := range schema.AllSections {
			if rec.Section(section) == 2 {
				return true
			}
		}
	}
	return false
}
