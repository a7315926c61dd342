// Package schema holds the static field whitelist and the per-section
// required-field tables. Incoming payload keys are validated by plain set
// membership; there is no reflection and no dynamic typing.
package schema

// Section identifies one completable block of a case record.
type Section string

const (
	SectionKYC       Section = "kyc_section_status"
	SectionContact   Section = "contact_section_status"
	SectionAddress   Section = "address_section_status"
	SectionIdentity  Section = "identity_section_status"
	SectionFinancial Section = "financial_section_status"
	SectionCorporate Section = "corporate_section_status"
)

// CompletableSections are the sections the completeness engine walks, in a
// fixed order so recomputes are deterministic.
var CompletableSections = []Section{
	SectionContact,
	SectionAddress,
	SectionIdentity,
	SectionFinancial,
	SectionCorporate,
}

// AllSections additionally includes the admin-set kyc section marker.
var AllSections = append([]Section{SectionKYC}, CompletableSections...)

// RequiredSections returns the section set a given account type must complete.
// Individuals have no corporate section.
func RequiredSections(corporate bool) []Section {
	if corporate {
		return CompletableSections
	}
	out := make([]Section, 0, len(CompletableSections)-1)
	for _, s := range CompletableSections {
		if s != SectionCorporate {
			out = append(out, s)
		}
	}
	return out
}

var generalFields = []string{
	"type_account",
	"resident_country",
	"is_canceled",
	"language",
	"is_preliminary_completed",
}

var verificationFields = []string{
	"verification_reason_crypto",
	"verification_reason_trade",
	"verification_reason_lend",
	"verification_reason_fiat",
	"verification_reason_tether",
	"verification_reason_apis",
	"verification_reason_nectar",
	"user_agreed_with_terms",
}

var contactFields = []string{
	"first_name",
	"middle_name",
	"last_name",
	"dob",
	"nationality",
	"gender",
	"phone_country_code",
	"phone_area_code",
	"phone",
	"email",
	"corporate_website",
	"core_username",
	"core_email",
}

var addressFields = []string{
	"country",
	"state",
	"city",
	"district",
	"building_name",
	"street",
	"office_floor",
	"appt_nb",
	"zipcode",
	"resid_country",
	"resid_state",
	"resid_city",
	"resid_district",
	"resid_building_name",
	"resid_street",
	"resid_office_floor",
	"resid_appt_nb",
	"resid_zipcode",
}

var identityFields = []string{
	"passport_firstname",
	"passport_lastname",
	"passport_middle1",
	"passport_middle2",
	"passport_dob",
	"passport_nb",
	"passport_country",
	"passport_check",
	"national_id_firstname",
	"national_id_lastname",
	"national_id_middle1",
	"national_id_middle2",
	"national_id_exp",
	"national_id_nb",
	"national_id_country",
	"national_check",
	"driver_firstname",
	"driver_lastname",
	"driver_middle1",
	"driver_middle2",
	"driver_exp",
	"driver_nb",
	"driver_country",
	"driver_check",
	"other_id_firstname",
	"other_id_lastname",
	"other_id_middle1",
	"other_id_middle2",
	"other_id_exp",
	"other_id_number",
	"other_id_country",
	"other_check",
	"proof_resid_type",
	"proof_resid_date",
}

var identityFileFields = []string{
	"passport",
	"identity_front",
	"identity_back",
	"driver_front",
	"driver_back",
	"other_front",
	"other_back",
	"proof_of_res",
	"selfie",
}

var corporateFields = []string{
	"account_id",
	"full_corporate_name",
	"incorporation_date",
	"incorporation_country",
	"incorporate_state",
	"incorporation_number",
	"incorporation_tax_id",
	"corp_type",
	"corp_directors",
}

var corporateFileFields = []string{
	"certificate_of_incorporation",
	"company_memorandum",
	"details_of_ownership",
	"company_bank_statement",
	"company_minutes",
	"authorized_signature",
	"member_register",
	"current_officers_register",
	"ultimate_beneficial_names",
	"list_of_shareholders",
	"list_of_all_directors",
	"certificate_of_incumbency",
	"certificate_of_good_standing",
}

var financialIndividualFields = []string{
	"bank_statement_name",
	"bank_statement_country",
	"bank_account_number",
	"bank_statement_date",
	"bank_statement",
	"occupation_type",
	"industry",
	"job_title",
	"employer_name",
	"employer_country",
	"employer_state",
	"employer_city",
	"employer_district",
	"employer_building_nb",
	"employer_street",
	"employer_zipcode",
	"source_funds",
	"net_worth_usd",
	"expected_investment",
	"investment_stock",
	"investment_exp_nbyears",
	"investment_derivatives_nbyears",
	"investment_derivatives",
	"investment_risks",
}

var financialCorporateFields = []string{
	"bank_account_name",
	"bank_name",
	"bank_branch_location",
	"bank_swift",
}

// fieldWhitelist is the union of every free-form field group.
var fieldWhitelist = buildSet(
	generalFields,
	verificationFields,
	contactFields,
	addressFields,
	identityFields,
	identityFileFields,
	corporateFields,
	corporateFileFields,
	financialIndividualFields,
	financialCorporateFields,
)

func buildSet(groups ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, group := range groups {
		for _, key := range group {
			set[key] = struct{}{}
		}
	}
	return set
}

// KnownField reports whether a free-form payload key belongs to the schema.
func KnownField(key string) bool {
	_, ok := fieldWhitelist[key]
	return ok
}

// KnownSection reports whether a key names a section-status field.
func KnownSection(key string) bool {
	for _, s := range AllSections {
		if string(s) == key {
			return true
		}
	}
	return false
}

// Statuses accepted in a save payload. "verified" is included so the schema
// check does not reject it before the pipeline rules decide it is never a
// directly requestable target.
var requestableStatuses = map[string]struct{}{
	"incomplete": {},
	"submitted":  {},
	"canceled":   {},
	"resumed":    {},
	"reset":      {},
	"verified":   {},
	"pending":    {},
	"refused":    {},
	"unrefused":  {},
}

// KnownStatus reports whether a requested status value is part of the schema.
func KnownStatus(status string) bool {
	_, ok := requestableStatuses[status]
	return ok
}

// adminOnlyStatuses may only appear in an admin-originated payload.
var adminOnlyStatuses = map[string]struct{}{
	"verified":  {},
	"pending":   {},
	"refused":   {},
	"unrefused": {},
}

// AdminOnlyStatus reports whether a requested status requires an admin actor.
func AdminOnlyStatus(status string) bool {
	_, ok := adminOnlyStatuses[status]
	return ok
}

// AdminOnlySection reports whether setting a section status value requires an
// admin actor. Every completable section write is admin-only; the kyc section
// marker is user-settable except at the approved value.
func AdminOnlySection(section Section, value int) bool {
	if section == SectionKYC {
		return value == 2
	}
	return true
}

// RequiredFields returns the field names a section needs before it counts as
// complete, for the given account type.
func RequiredFields(section Section, corporate bool) []string {
	rules, ok := requiredFields[section]
	if !ok {
		return nil
	}
	extra := rules.individual
	if corporate {
		extra = rules.corporate
	}
	out := make([]string, 0, len(rules.general)+len(extra))
	out = append(out, rules.general...)
	out = append(out, extra...)
	return out
}

type sectionRules struct {
	general    []string
	corporate  []string
	individual []string
}

var requiredFields = map[Section]sectionRules{
	SectionContact: {
		general: []string{
			"first_name",
			"last_name",
			"nationality",
			"phone_country_code",
			"phone_area_code",
			"phone",
		},
		corporate: []string{"corporate_website"},
	},
	SectionAddress: {
		general: []string{
			"resid_country",
			"resid_state",
			"resid_city",
			"resid_building_name",
			"resid_street",
			"resid_zipcode",
			"country",
			"state",
			"city",
			"building_name",
			"street",
			"zipcode",
		},
	},
	SectionCorporate: {
		corporate: []string{
			"full_corporate_name",
			"incorporation_country",
			"incorporate_state",
			"incorporation_number",
			"incorporation_tax_id",
			"corp_type",
			"corp_directors",
		},
		// Individuals can never satisfy this placeholder, which keeps the
		// corporate section permanently incomplete for them.
		individual: []string{"section_not_for_individuals"},
	},
	SectionFinancial: {
		corporate: []string{
			"bank_account_name",
			"bank_name",
			"bank_branch_location",
			"bank_account_number",
			"bank_swift",
		},
		individual: []string{
			"bank_statement_name",
			"bank_statement_country",
			"bank_account_number",
			"occupation_type",
			"industry",
			"job_title",
			"source_funds",
			"employer_name",
			"employer_country",
			"employer_state",
			"employer_city",
			"employer_district",
			"employer_building_nb",
			"employer_street",
			"employer_zipcode",
			"net_worth_usd",
			"expected_investment",
			"investment_stock",
			"investment_exp_nbyears",
			"investment_derivatives_nbyears",
			"investment_derivatives",
			"investment_risks",
		},
	},
	SectionIdentity: {
		individual: []string{"proof_resid_type"},
	},
}

// IdentityDocumentBundles are the alternative identity-document field groups.
// An individual identity section needs at least two complete bundles.
var IdentityDocumentBundles = [][]string{
	{
		"passport_firstname",
		"passport_lastname",
		"passport_nb",
		"passport_country",
	},
	{
		"national_id_firstname",
		"national_id_lastname",
		"national_id_nb",
		"national_id_country",
	},
	{
		"driver_firstname",
		"driver_lastname",
		"driver_nb",
		"driver_country",
	},
	{
		"other_id_firstname",
		"other_id_lastname",
		"other_id_exp",
		"other_id_country",
		"other_id_number",
	},
}
