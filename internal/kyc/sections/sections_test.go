package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kyc-core/internal/kyc/models"
	"kyc-core/internal/schema"
)

func individualRecord(fields map[string]string) *models.Record {
	return &models.Record{
		UID:           1,
		IsMainAccount: true,
		TypeAccount:   models.AccountIndividual,
		Sections:      map[schema.Section]int{},
		Fields:        fields,
	}
}

func contactFields() map[string]string {
	return map[string]string{
		"first_name":         "Ann",
		"last_name":          "Lee",
		"nationality":        "SG",
		"phone_country_code": "65",
		"phone_area_code":    "0",
		"phone":              "5550101",
	}
}

func TestComputeContactSection(t *testing.T) {
	t.Run("complete fields reach 1", func(t *testing.T) {
		rec := individualRecord(contactFields())
		changes := Compute(rec, nil)
		assert.Equal(t, 1, changes[schema.SectionContact])
	})

	t.Run("missing field stays incomplete", func(t *testing.T) {
		fields := contactFields()
		delete(fields, "phone")
		rec := individualRecord(fields)
		changes := Compute(rec, nil)
		_, ok := changes[schema.SectionContact]
		assert.False(t, ok)
	})

	t.Run("reached section is not recomputed", func(t *testing.T) {
		rec := individualRecord(map[string]string{})
		rec.Sections[schema.SectionContact] = 2
		changes := Compute(rec, nil)
		_, ok := changes[schema.SectionContact]
		assert.False(t, ok, "monotonic: no downward recompute")
	})
}

func TestComputeIndividualIdentity(t *testing.T) {
	bundle := func(fields map[string]string, idx int) {
		for _, key := range schema.IdentityDocumentBundles[idx] {
			fields[key] = "x"
		}
	}

	t.Run("two bundles complete the section", func(t *testing.T) {
		fields := map[string]string{"proof_resid_type": "utility_bill"}
		bundle(fields, 0)
		bundle(fields, 2)
		rec := individualRecord(fields)
		changes := Compute(rec, nil)
		assert.Equal(t, 1, changes[schema.SectionIdentity])
	})

	t.Run("one bundle is not enough", func(t *testing.T) {
		fields := map[string]string{"proof_resid_type": "utility_bill"}
		bundle(fields, 0)
		rec := individualRecord(fields)
		changes := Compute(rec, nil)
		_, ok := changes[schema.SectionIdentity]
		assert.False(t, ok)
	})
}

func corporateMain() *models.Record {
	return &models.Record{
		UID:           7,
		IsMainAccount: true,
		TypeAccount:   models.AccountCorporate,
		Sections:      map[schema.Section]int{},
		Fields:        map[string]string{},
	}
}

func member(contact, address, identity int) *models.Record {
	return &models.Record{
		UID: 7,
		Sections: map[schema.Section]int{
			schema.SectionContact:  contact,
			schema.SectionAddress:  address,
			schema.SectionIdentity: identity,
		},
		Fields: map[string]string{},
	}
}

func TestComputeCorporateIdentity(t *testing.T) {
	t.Run("all members complete", func(t *testing.T) {
		changes := Compute(corporateMain(), []*models.Record{member(1, 1, 1), member(1, 1, 1)})
		assert.Equal(t, 1, changes[schema.SectionIdentity])
	})

	t.Run("no members means incomplete", func(t *testing.T) {
		changes := Compute(corporateMain(), nil)
		assert.Equal(t, 0, changes[schema.SectionIdentity])
	})

	t.Run("incomplete member regresses a reached section", func(t *testing.T) {
		rec := corporateMain()
		rec.Sections[schema.SectionIdentity] = 1
		changes := Compute(rec, []*models.Record{member(1, 1, 1), member(0, 0, 0)})
		assert.Equal(t, 0, changes[schema.SectionIdentity])
	})
}

func TestAutoVerify(t *testing.T) {
	submitted := func() *models.Record {
		rec := corporateMain()
		rec.SignatureSubmitted = 1700000000000
		return rec
	}

	t.Run("not applicable before submission", func(t *testing.T) {
		assert.Nil(t, AutoVerify(corporateMain(), []*models.Record{member(2, 2, 2)}))
	})

	t.Run("not applicable for individuals", func(t *testing.T) {
		rec := individualRecord(nil)
		rec.SignatureSubmitted = 1
		assert.Nil(t, AutoVerify(rec, nil))
	})

	t.Run("all members approved yields 2", func(t *testing.T) {
		got := AutoVerify(submitted(), []*models.Record{member(2, 2, 2)})
		assert.Equal(t, map[schema.Section]int{schema.SectionIdentity: 2}, got)
	})

	t.Run("any member short of approval yields 1", func(t *testing.T) {
		got := AutoVerify(submitted(), []*models.Record{member(2, 2, 2), member(2, 2, 1)})
		assert.Equal(t, map[schema.Section]int{schema.SectionIdentity: 1}, got)
	})

	t.Run("already verified is untouched", func(t *testing.T) {
		rec := submitted()
		rec.SignatureVerified = 1
		assert.Nil(t, AutoVerify(rec, []*models.Record{member(2, 2, 2)}))
	})
}

func TestSweepAndComplete(t *testing.T) {
	t.Run("corporate sweep covers the corporate section", func(t *testing.T) {
		got := Sweep(3, true)
		assert.Equal(t, 3, got[schema.SectionCorporate])
		assert.Len(t, got, 6)
	})

	t.Run("complete requires exact values", func(t *testing.T) {
		rec := individualRecord(nil)
		rec.Sections = Sweep(1, false)
		assert.True(t, Complete(rec, 1))
		assert.False(t, Complete(rec, 2))

		rec.Sections[schema.SectionFinancial] = 2
		assert.False(t, Complete(rec, 1))
	})
}

func TestVerificationStarted(t *testing.T) {
	main := individualRecord(nil)
	assert.False(t, VerificationStarted(main, nil))

	main.Sections[schema.SectionAddress] = 2
	assert.True(t, VerificationStarted(main, nil))

	corp := corporateMain()
	assert.True(t, VerificationStarted(corp, []*models.Record{member(0, 0, 2)}))
}
