package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc-core/internal/auth"
	"kyc-core/internal/auth/formtoken"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/store"
	"kyc-core/internal/notify"
	"kyc-core/internal/objstore"
	"kyc-core/internal/schema"
	dErrors "kyc-core/pkg/domain-errors"
)

const (
	testIP     = "10.1.2.3"
	userToken  = "user-token"
	adminFull  = "adm-full-token"
	adminMid   = "adm-mid-token"
	adminLow   = "adm-low-token"
	userUID    = int64(7)
	formSecret = "form-secret"
)

type stubUsers struct {
	byToken map[string]*auth.User
}

func (s *stubUsers) CheckAuthToken(_ context.Context, token, _ string) (*auth.User, error) {
	if user, ok := s.byToken[token]; ok {
		return user, nil
	}
	return nil, dErrors.New(dErrors.CodeUserTokenInvalid, "")
}

type stubSummary struct {
	mu   sync.Mutex
	fail error
}

func (s *stubSummary) GetSummary(_ context.Context, _ int64) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	return map[string]any{
		"trade_vol_30d": []any{
			map[string]any{"curr": "BTC", "vol": float64(2)},
			map[string]any{"curr": "Total (USD)", "vol": float64(90000)},
		},
	}, nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type stubUploader struct {
	mu      sync.Mutex
	uploads []string
}

func (u *stubUploader) Upload(_ context.Context, _ []byte, filename, _ string) (objstore.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, filename)
	return objstore.UploadResult{Key: "k-" + filename, URL: "https://files.test/" + filename}, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	cases    *store.InMemoryCaseStore
	docs     *store.InMemoryDocumentStore
	logs     *store.InMemoryLogStore
	notifier *captureNotifier
	uploader *stubUploader
	summary  *stubSummary
	forms    *formtoken.Manager
	svc      *Service
	clock    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.cases = store.NewMemoryCases()
	s.docs = store.NewMemoryDocuments()
	s.logs = store.NewMemoryLogs()
	s.notifier = &captureNotifier{}
	s.uploader = &stubUploader{}
	s.summary = &stubSummary{}
	s.forms = formtoken.New([]byte(formSecret), time.Hour)
	s.clock = time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)

	sessions := auth.NewMemorySessions(time.Hour)
	users := &stubUsers{byToken: map[string]*auth.User{
		userToken: {ID: userUID, Username: "neo", Email: "neo@example.com"},
	}}
	authSvc := auth.NewService(sessions, users, []auth.AdminAccount{
		{Email: "alice@corp", Level: auth.LevelFull, IsActive: true},
		{Email: "mallory@corp", Level: auth.LevelRestricted, IsActive: true},
	})
	for _, session := range []*auth.Session{
		{Token: adminFull, Email: "alice@corp", Level: auth.LevelFull, IP: testIP},
		{Token: adminMid, Email: "mallory@corp", Level: auth.LevelRestricted, IP: testIP},
		{Token: adminLow, Email: "trent@corp", Level: auth.LevelMostRestricted, IP: testIP},
	} {
		s.Require().NoError(sessions.Save(s.ctx, session))
	}

	s.svc = New(
		Stores{
			Cases:       s.cases,
			Documents:   s.docs,
			Logs:        s.logs,
			AdminChecks: store.NewMemoryAdminChecks(),
			Recents:     store.NewMemoryRecents(),
		},
		authSvc, s.forms, s.summary,
		WithNotifier(s.notifier),
		WithUploader(s.uploader),
		WithClock(func() time.Time { return s.clock }),
	)
}

func (s *ServiceSuite) advance(d time.Duration) { s.clock = s.clock.Add(d) }

func cred(token string) auth.Credential { return auth.Credential{Token: token, IP: testIP} }

func boolPtr(b bool) *bool { return &b }

// createMain creates the user's main individual account and returns its id.
func (s *ServiceSuite) createMain() string {
	res, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		IsMainAccount: boolPtr(true),
		TypeAccount:   "individual",
		Fields:        map[string]string{"resident_country": "PT"},
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(res.ID)
	return res.ID
}

// completeFields is every field an individual needs to bring all computable
// sections to 1.
func completeFields() map[string]string {
	fields := map[string]string{
		// contact
		"first_name": "Thomas", "last_name": "Anderson", "nationality": "US",
		"phone_country_code": "1", "phone_area_code": "555", "phone": "0199",
		// identity: two document bundles plus residence proof
		"passport_firstname": "Thomas", "passport_lastname": "Anderson",
		"passport_nb": "P123", "passport_country": "US",
		"national_id_firstname": "Thomas", "national_id_lastname": "Anderson",
		"national_id_nb": "N456", "national_id_country": "US",
		"proof_resid_type": "utility_bill",
	}
	address := []string{
		"resid_country", "resid_state", "resid_city", "resid_building_name",
		"resid_street", "resid_zipcode", "country", "state", "city",
		"building_name", "street", "zipcode",
	}
	financial := []string{
		"bank_statement_name", "bank_statement_country", "bank_account_number",
		"occupation_type", "industry", "job_title", "source_funds",
		"employer_name", "employer_country", "employer_state", "employer_city",
		"employer_district", "employer_building_nb", "employer_street",
		"employer_zipcode", "net_worth_usd", "expected_investment",
		"investment_stock", "investment_exp_nbyears",
		"investment_derivatives_nbyears", "investment_derivatives",
		"investment_risks",
	}
	for _, key := range append(address, financial...) {
		fields[key] = "x"
	}
	return fields
}

// submitMain walks a fresh main account to submitted and returns its id.
func (s *ServiceSuite) submitMain() string {
	id := s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Fields: completeFields(),
		Sections: map[string]int{string(schema.SectionKYC): 1},
	})
	s.Require().NoError(err)

	res, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusSubmitted),
	})
	s.Require().NoError(err)
	s.Require().Equal(models.StatusSubmitted, res.Status)
	return id
}

func (s *ServiceSuite) logEntries() []models.StatusLogEntry {
	entries, err := s.logs.FindLogs(s.ctx, models.LogFilter{})
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestCreateMainAccount() {
	id := s.createMain()

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusIncomplete, rec.Status)
	s.True(rec.IsMainAccount)
	s.Equal(userUID, rec.UID)
	s.Equal("neo", rec.CoreUsername)
	s.Equal("neo@example.com", rec.CoreEmail)

	entries := s.logEntries()
	s.Require().Len(entries, 1)
	s.Equal(models.StatusIncomplete, entries[0].Status)
	s.Equal(models.ActorUser, entries[0].Actor)
	s.Equal(int64(90000), entries[0].NetWorthUSD)
}

func (s *ServiceSuite) TestRejectsUnknownField() {
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		IsMainAccount: boolPtr(true),
		Fields:        map[string]string{"favorite_color": "green"},
	})
	s.True(dErrors.Is(err, dErrors.NotInSchema("favorite_color")))
}

func (s *ServiceSuite) TestRejectsSecondMainAccount() {
	s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		IsMainAccount: boolPtr(true),
	})
	s.True(dErrors.Is(err, dErrors.CodeDuplicateMainAccount))
}

func (s *ServiceSuite) TestUserCannotActOnForeignUID() {
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{UID: 99})
	s.True(dErrors.Is(err, dErrors.CodeMustBeAdminOrOwner))
}

func (s *ServiceSuite) TestUserCannotSetAdminStatus() {
	id := s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusPending),
	})
	s.True(dErrors.Is(err, dErrors.CodeMustBeAdminToChangeData))
}

func (s *ServiceSuite) TestSubmitRequiresCompleteSections() {
	id := s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusSubmitted),
	})
	s.True(dErrors.Is(err, dErrors.CodeDataMissingCantSubmit))
}

func (s *ServiceSuite) TestSubmitBlockedWhenSummaryUnavailable() {
	id := s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Fields: completeFields(),
		Sections: map[string]int{string(schema.SectionKYC): 1},
	})
	s.Require().NoError(err)

	s.summary.fail = dErrors.New(dErrors.CodeInternal, "summary backend down")
	_, err = s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusSubmitted),
	})
	s.Error(err)
	s.Zero(s.notifier.count())

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusIncomplete, rec.Status)
}

func (s *ServiceSuite) TestSubmitEmbedsSummaryAndNotifies() {
	id := s.submitMain()

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, rec.Status)
	s.NotZero(rec.SignatureSubmitted)
	s.False(rec.CheckedByAdmin)
	s.NotNil(rec.Summary)
	for _, section := range schema.RequiredSections(false) {
		s.Equal(1, rec.Section(section), string(section))
	}
	s.Equal(1, rec.Section(schema.SectionKYC))

	s.Require().Equal(1, s.notifier.count())
	s.Contains(s.notifier.sent[0].Subject, "submitted")
	s.Equal([]string{"neo@example.com"}, s.notifier.sent[0].To)
}

func (s *ServiceSuite) TestSubmittedLockoutAndFormBypass() {
	id := s.submitMain()

	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Fields: map[string]string{"language": "en"},
	})
	s.True(dErrors.Is(err, dErrors.CodeCantEditSubmitted))

	token, err := s.forms.Issue(userUID, "")
	s.Require().NoError(err)
	_, err = s.svc.SaveFormsData(s.ctx, token, "7", &models.SaveRequest{
		ID: id, Fields: map[string]string{"language": "en"},
	})
	s.Require().NoError(err)

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("en", rec.Fields["language"])
	s.Contains(rec.Forms, "form7")
}

func (s *ServiceSuite) TestFormsDataRejectsBadToken() {
	_, err := s.svc.SaveFormsData(s.ctx, "garbage", "", &models.SaveRequest{})
	s.True(dErrors.Is(err, dErrors.CodeInvalidFormToken))
}

func (s *ServiceSuite) TestAdminApprovalReachesVerified() {
	id := s.submitMain()
	s.advance(time.Hour)

	approved := map[string]int{}
	for _, section := range schema.RequiredSections(false) {
		approved[string(section)] = 2
	}
	approved[string(schema.SectionKYC)] = 2

	res, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		ID: id, Sections: approved,
	})
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, res.Status)

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, rec.Status)
	s.NotZero(rec.SignatureVerified)

	verified := 0
	for _, entry := range s.logEntries() {
		if entry.Status == models.StatusVerified {
			verified++
			s.Equal("alice@corp", entry.Actor)
		}
	}
	s.Equal(1, verified)
}

func (s *ServiceSuite) TestNoOpSaveAppendsNoLog() {
	id := s.createMain()
	before := len(s.logEntries())

	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Fields: map[string]string{"resident_country": "PT"},
	})
	s.Require().NoError(err)
	s.Len(s.logEntries(), before)
}

func (s *ServiceSuite) TestOptimisticConcurrency() {
	id := s.createMain()
	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)

	_, err = s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, VerificationTimestamp: rec.Timestamp - 1,
	})
	s.True(dErrors.Is(err, dErrors.CodeConcurrentModification))

	_, err = s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, VerificationTimestamp: rec.Timestamp,
	})
	s.NoError(err)
}

func (s *ServiceSuite) TestMemberCannotCarryStatus() {
	s.createMain()
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		Status: string(models.StatusSubmitted),
		Fields: map[string]string{"first_name": "Morpheus"},
	})
	s.True(dErrors.Is(err, dErrors.CodeCantSetStatusOnMember))
}

func (s *ServiceSuite) TestResetRoundTrip() {
	id := s.createMain()
	// member plus a document, both must be wiped
	_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		Fields: map[string]string{"first_name": "Morpheus"},
	})
	s.Require().NoError(err)
	_, err = s.svc.SaveDocuments(s.ctx, cred(userToken), []models.DocumentUpload{
		{Data: []byte("scan"), Filename: "passport.png"},
	})
	s.Require().NoError(err)

	res, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Reset: true,
	})
	s.Require().NoError(err)
	s.Equal(models.StatusIncomplete, res.Status)

	recs, err := s.cases.ByUID(s.ctx, userUID)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.True(recs[0].IsMainAccount)
	s.Equal(models.StatusIncomplete, recs[0].Status)

	docs, err := s.docs.ByUID(s.ctx, userUID, models.Page{})
	s.Require().NoError(err)
	s.Empty(docs)

	entries := s.logEntries()
	var tail []models.Status
	for _, entry := range entries[len(entries)-2:] {
		tail = append(tail, entry.Status)
	}
	s.Equal([]models.Status{models.StatusReset, models.StatusIncomplete}, tail)
}

func (s *ServiceSuite) TestResetGuards() {
	s.createMain()
	memberRes, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		Fields: map[string]string{"first_name": "Morpheus"},
	})
	s.Require().NoError(err)

	s.Run("member", func() {
		_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
			ID: memberRes.ID, Reset: true,
		})
		s.True(dErrors.Is(err, dErrors.CodeCantResetMember))
	})
	s.Run("without id", func() {
		_, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{Reset: true})
		s.True(dErrors.Is(err, dErrors.CodeCantResetWithoutID))
	})

	s.Run("after submit", func() {
		submitted := s.submitMainSecondUser()
		_, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
			ID: submitted, Reset: true,
		})
		s.True(dErrors.Is(err, dErrors.CodeCantResetSubmitted))
	})
}

// submitMainSecondUser builds and submits a main account for an admin-managed
// uid so tests can layer scenarios without clashing with the default user.
func (s *ServiceSuite) submitMainSecondUser() string {
	res, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		UID: 42, IsMainAccount: boolPtr(true), TypeAccount: "individual",
	})
	s.Require().NoError(err)
	_, err = s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		ID: res.ID, Fields: completeFields(),
		Sections: map[string]int{string(schema.SectionKYC): 1},
	})
	s.Require().NoError(err)
	_, err = s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		ID: res.ID, Status: string(models.StatusSubmitted),
	})
	s.Require().NoError(err)
	return res.ID
}

func (s *ServiceSuite) TestCancelClearsSubmittedSignature() {
	id := s.submitMain()
	res, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusCanceled),
	})
	s.Require().NoError(err)
	s.Equal(models.StatusCanceled, res.Status)

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Zero(rec.SignatureSubmitted)
}

func (s *ServiceSuite) TestCancelBlockedOnceVerificationStarted() {
	id := s.submitMain()
	_, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		ID: id, Sections: map[string]int{string(schema.SectionContact): 2},
	})
	s.Require().NoError(err)

	_, err = s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Status: string(models.StatusCanceled),
	})
	s.True(dErrors.Is(err, dErrors.CodeCantCancelVerifying))
}

func (s *ServiceSuite) TestCorporateAutoVerify() {
	// corporate main plus two members
	mainRes, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		UID: 50, IsMainAccount: boolPtr(true), TypeAccount: "corporate",
	})
	s.Require().NoError(err)
	var memberIDs []string
	for range 2 {
		res, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
			UID: 50, TypeAccount: "corporate",
			Fields: map[string]string{"first_name": "Officer"},
		})
		s.Require().NoError(err)
		memberIDs = append(memberIDs, res.ID)
	}

	// fast-forward the main to submitted directly in the store; the flow to
	// get there is covered by the individual tests
	main, err := s.cases.ByID(s.ctx, mainRes.ID)
	s.Require().NoError(err)
	main.Status = models.StatusSubmitted
	main.SignatureSubmitted = s.clock.UnixMilli()
	s.Require().NoError(s.cases.Update(s.ctx, main))

	// members fully approved -> identity on the main flips to 2
	for _, memberID := range memberIDs {
		_, err := s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
			ID: memberID,
			Sections: map[string]int{
				string(schema.SectionContact):  2,
				string(schema.SectionAddress):  2,
				string(schema.SectionIdentity): 2,
			},
		})
		s.Require().NoError(err)
	}
	_, err = s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{ID: mainRes.ID})
	s.Require().NoError(err)

	main, err = s.cases.ByID(s.ctx, mainRes.ID)
	s.Require().NoError(err)
	s.Equal(2, main.Section(schema.SectionIdentity))
}

func (s *ServiceSuite) TestProcessValidation() {
	id := s.submitMain()

	s.Run("admin only", func() {
		_, err := s.svc.Process(s.ctx, cred(userToken), id, "canceled", "n", nil)
		s.True(dErrors.Is(err, dErrors.CodeMustBeAdminToProcess))
	})
	s.Run("invalid status", func() {
		_, err := s.svc.Process(s.ctx, cred(adminFull), id, "other", "n", nil)
		s.True(dErrors.Is(err, dErrors.CodeInvalidDataStatus))
	})
	s.Run("notes required", func() {
		_, err := s.svc.Process(s.ctx, cred(adminFull), id, "refused", "", nil)
		s.True(dErrors.Is(err, dErrors.CodeStatusEditRequiresNotes))
	})
	s.Run("transition checked", func() {
		_, err := s.svc.Process(s.ctx, cred(adminFull), id, "unrefused", "n", nil)
		s.True(dErrors.Is(err, dErrors.CantSetStatus("unrefused", "submitted")))
	})
}

func (s *ServiceSuite) TestProcessRefuseAndUnrefuse() {
	id := s.submitMain()

	res, err := s.svc.Process(s.ctx, cred(adminFull), id, "refused", "sanctions hit", nil)
	s.Require().NoError(err)
	s.Equal(models.StatusRefused, res.Status)

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusRefused, rec.Status)
	s.NotZero(rec.SignatureRefused)
	for _, section := range schema.RequiredSections(false) {
		s.Equal(3, rec.Section(section))
	}

	// refused records are frozen for the owner
	_, err = s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		ID: id, Fields: map[string]string{"language": "en"},
	})
	s.True(dErrors.Is(err, dErrors.CodeCantEditRefused))

	res, err = s.svc.Process(s.ctx, cred(adminFull), id, "unrefused", "cleared", boolPtr(false))
	s.Require().NoError(err)
	s.Equal(models.StatusUnrefused, res.Status)

	rec, err = s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, rec.Status)
	for _, section := range schema.RequiredSections(false) {
		s.Equal(1, rec.Section(section))
	}
}

func (s *ServiceSuite) TestFetchRedaction() {
	id := s.submitMain()
	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	monitored := rec.Clone()
	monitored.IsMonitored = true
	s.Require().NoError(s.cases.Update(s.ctx, monitored))

	s.Run("invalid collection", func() {
		_, err := s.svc.Fetch(s.ctx, cred(userToken), "secrets", 0, models.Page{})
		s.True(dErrors.Is(err, dErrors.CodeInvalidCollection))
	})
	s.Run("user view", func() {
		views, err := s.svc.Fetch(s.ctx, cred(userToken), CollectionCompliances, 0, models.Page{})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		for _, hidden := range []string{"uid", "summary", "is_monitored", "checked_by_admin"} {
			s.NotContains(views[0], hidden)
		}
		s.Equal("submitted", views[0]["status"])
	})
	s.Run("restricted admin view", func() {
		views, err := s.svc.Fetch(s.ctx, cred(adminMid), CollectionCompliances, userUID, models.Page{})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Contains(views[0], "uid")
		s.NotContains(views[0], "is_monitored")
	})
	s.Run("full admin view flips checked flag", func() {
		views, err := s.svc.Fetch(s.ctx, cred(adminFull), CollectionCompliances, userUID, models.Page{})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(true, views[0]["is_monitored"])
		s.Equal(true, views[0]["checked_by_admin"])

		stored, err := s.cases.ByID(s.ctx, id)
		s.Require().NoError(err)
		s.True(stored.CheckedByAdmin)
	})
}

func (s *ServiceSuite) TestFetchHidesPrivateDocuments() {
	s.createMain()
	_, err := s.svc.SaveDocuments(s.ctx, cred(userToken), []models.DocumentUpload{
		{Data: []byte("a"), Filename: "public.png"},
		{Data: []byte("b"), Filename: "internal.png", IsPrivate: true},
	})
	s.Require().NoError(err)

	userViews, err := s.svc.Fetch(s.ctx, cred(userToken), CollectionDocuments, 0, models.Page{})
	s.Require().NoError(err)
	s.Len(userViews, 1)
	s.NotContains(userViews[0], "uid")

	adminViews, err := s.svc.Fetch(s.ctx, cred(adminFull), CollectionDocuments, userUID, models.Page{})
	s.Require().NoError(err)
	s.Len(adminViews, 2)
}

func (s *ServiceSuite) TestDeleteRules() {
	id := s.createMain()
	memberRes, err := s.svc.SaveData(s.ctx, cred(userToken), &models.SaveRequest{
		Fields: map[string]string{"first_name": "Morpheus"},
	})
	s.Require().NoError(err)

	s.Run("main account protected", func() {
		err := s.svc.Delete(s.ctx, cred(userToken), CollectionCompliances, id, 0)
		s.True(dErrors.Is(err, dErrors.CodeCantDeleteMainAccount))
	})
	s.Run("missing id", func() {
		err := s.svc.Delete(s.ctx, cred(userToken), CollectionCompliances, "", 0)
		s.True(dErrors.Is(err, dErrors.CodeMissingDataID))
	})
	s.Run("invalid collection", func() {
		err := s.svc.Delete(s.ctx, cred(userToken), "secrets", memberRes.ID, 0)
		s.True(dErrors.Is(err, dErrors.CodeInvalidDeleteTarget))
	})
	s.Run("member deleted", func() {
		s.Require().NoError(
			s.svc.Delete(s.ctx, cred(userToken), CollectionCompliances, memberRes.ID, 0))
		_, err := s.cases.ByID(s.ctx, memberRes.ID)
		s.Error(err)
	})
}

func (s *ServiceSuite) TestSaveDocuments() {
	s.createMain()

	s.Run("upload and metadata update", func() {
		results, err := s.svc.SaveDocuments(s.ctx, cred(userToken), []models.DocumentUpload{
			{Data: []byte("payload"), Filename: "selfie.png", Type: "selfie"},
		})
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal("https://files.test/selfie.png", results[0].URL)

		updated, err := s.svc.SaveDocuments(s.ctx, cred(userToken), []models.DocumentUpload{
			{ID: results[0].ID, Remark: "blurry"},
		})
		s.Require().NoError(err)
		s.Equal(results[0].ID, updated[0].ID)

		doc, err := s.docs.ByID(s.ctx, results[0].ID)
		s.Require().NoError(err)
		s.Equal("blurry", doc.Remark)
		s.Equal("https://files.test/selfie.png", doc.URL)
	})
	s.Run("no file or id", func() {
		_, err := s.svc.SaveDocuments(s.ctx, cred(userToken), []models.DocumentUpload{
			{Remark: "orphan"},
		})
		s.True(dErrors.Is(err, dErrors.CodeUploadedNoFileOrID))
	})
	s.Run("admin upload needs a uid", func() {
		_, err := s.svc.SaveDocuments(s.ctx, cred(adminFull), []models.DocumentUpload{
			{Data: []byte("x"), Filename: "a.png"},
		})
		s.True(dErrors.Is(err, dErrors.CodeUploadedNoUID))
	})
}

func (s *ServiceSuite) TestSaveFormsDocumentsTagsForm() {
	token, err := s.forms.Issue(userUID, "")
	s.Require().NoError(err)

	results, err := s.svc.SaveFormsDocuments(s.ctx, token, "w8ben", []models.DocumentUpload{
		{Data: []byte("pdf"), Filename: "w8.pdf"},
	})
	s.Require().NoError(err)
	s.Require().Len(results, 1)

	doc, err := s.docs.ByID(s.ctx, results[0].ID)
	s.Require().NoError(err)
	s.Equal("w8ben", doc.Form)
	s.Equal(userUID, doc.UID)
}

func (s *ServiceSuite) TestFindByTypeAccess() {
	s.Run("admin required", func() {
		_, err := s.svc.FindByType(s.ctx, cred(userToken), "submitted", "", models.Page{})
		s.True(dErrors.Is(err, dErrors.CodeMustBeAdminToFind))
	})
	s.Run("most restricted sees only pending", func() {
		_, err := s.svc.FindByType(s.ctx, cred(adminLow), "submitted", "", models.Page{})
		s.True(dErrors.Is(err, dErrors.CodeRestrictedAccess))
		_, err = s.svc.FindByType(s.ctx, cred(adminLow), "pending", "", models.Page{})
		s.NoError(err)
	})
	s.Run("enhanced needs full access", func() {
		_, err := s.svc.FindByType(s.ctx, cred(adminMid), TypeEnhanced, "", models.Page{})
		s.True(dErrors.Is(err, dErrors.CodeRestrictedAccess))
	})
}

func (s *ServiceSuite) TestFindByTypeListsAndRecents() {
	id := s.submitMain()

	// an admin read records the recent view
	_, err := s.svc.Fetch(s.ctx, cred(adminFull), CollectionCompliances, userUID, models.Page{})
	s.Require().NoError(err)

	res, err := s.svc.FindByType(s.ctx, cred(adminFull), "submitted", "", models.Page{})
	s.Require().NoError(err)
	s.Require().Len(res.Filter, 1)
	s.Equal(id, res.Filter[0]["_id"])
	s.Require().Len(res.Recently, 1)
	s.Equal(userUID, res.Recently[0]["uid"])

	s.Run("search narrows", func() {
		res, err := s.svc.FindByType(s.ctx, cred(adminFull), "submitted", "thom", models.Page{})
		s.Require().NoError(err)
		s.Len(res.Filter, 1)

		res, err = s.svc.FindByType(s.ctx, cred(adminFull), "submitted", "zzz", models.Page{})
		s.Require().NoError(err)
		s.Empty(res.Filter)
	})
	s.Run("offset drops recents", func() {
		res, err := s.svc.FindByType(s.ctx, cred(adminFull), "submitted", "", models.Page{Offset: 5})
		s.Require().NoError(err)
		s.Empty(res.Recently)
	})
	s.Run("enhanced lists monitored", func() {
		rec, err := s.cases.ByID(s.ctx, id)
		s.Require().NoError(err)
		flagged := rec.Clone()
		flagged.IsMonitored = true
		s.Require().NoError(s.cases.Update(s.ctx, flagged))

		res, err := s.svc.FindByType(s.ctx, cred(adminFull), TypeEnhanced, "", models.Page{})
		s.Require().NoError(err)
		s.Len(res.Filter, 1)
	})
}

func (s *ServiceSuite) TestAdminCheckEdit() {
	id := s.submitMain()

	_, err := s.svc.AdminCheckEdit(s.ctx, cred(userToken), id)
	s.True(dErrors.Is(err, dErrors.CodeMustBeAdminToCheckEdit))

	first, err := s.svc.AdminCheckEdit(s.ctx, cred(adminFull), id)
	s.Require().NoError(err)
	s.NotEmpty(first.OwnID)
	s.Nil(first.Check)

	// a second admin opening sees the first one still editing
	second, err := s.svc.AdminCheckEdit(s.ctx, cred(adminMid), id)
	s.Require().NoError(err)
	s.Require().NotNil(second.Check)
	s.Equal("alice@corp", second.Check.Admin)

	// the first admin saves; a reopen now reports a saved marker instead
	_, err = s.svc.SaveData(s.ctx, cred(adminFull), &models.SaveRequest{
		ID: id, Fields: map[string]string{"language": "en"},
	})
	s.Require().NoError(err)
	third, err := s.svc.AdminCheckEdit(s.ctx, cred(adminMid), id)
	s.Require().NoError(err)
	s.Nil(third.Check)
	s.Require().NotNil(third.Saved)
	s.Equal("alice@corp", third.Saved.Admin)
}

func (s *ServiceSuite) TestStatusLogsAdminOnly() {
	s.createMain()
	_, err := s.svc.StatusLogs(s.ctx, cred(userToken), models.LogFilter{}, false, models.Page{})
	s.True(dErrors.Is(err, dErrors.CodeMustBeAdminToFetchLogs))

	entries, err := s.svc.StatusLogs(s.ctx, cred(adminFull), models.LogFilter{}, false, models.Page{})
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ServiceSuite) TestAnalyticsDispatch() {
	s.createMain()

	s.Run("admin required", func() {
		_, err := s.svc.Analytics(s.ctx, cred(userToken), AnalyticsGeneral, models.LogFilter{}, 0, "")
		s.True(dErrors.Is(err, dErrors.CodeMustBeAdminForAnalytics))
	})
	s.Run("invalid type", func() {
		_, err := s.svc.Analytics(s.ctx, cred(adminFull), "weird", models.LogFilter{}, 0, "")
		s.True(dErrors.Is(err, dErrors.CodeInvalidAnalyticsType))
	})
	s.Run("invalid precision", func() {
		_, err := s.svc.Analytics(s.ctx, cred(adminFull), AnalyticsGeneral, models.LogFilter{}, 0.05, "")
		s.True(dErrors.Is(err, dErrors.CodeInvalidPrecision))
	})
	s.Run("general report", func() {
		report, err := s.svc.Analytics(s.ctx, cred(adminFull), AnalyticsGeneral, models.LogFilter{}, 0, "")
		s.Require().NoError(err)
		s.NotNil(report)
	})
}

func (s *ServiceSuite) TestFetchAdminsRoster() {
	id := s.submitMain()
	_, err := s.svc.Process(s.ctx, cred(adminFull), id, "refused", "bad docs", boolPtr(false))
	s.Require().NoError(err)

	_, err = s.svc.FetchAdmins(s.ctx, cred(adminMid))
	s.True(dErrors.Is(err, dErrors.CodeMustBeSuperAdmin))

	roster, err := s.svc.FetchAdmins(s.ctx, cred(adminFull))
	s.Require().NoError(err)
	s.Require().Len(roster, 2)
	s.Equal("alice@corp", roster[0].User)
	s.Equal(1, roster[0].Logs)
	s.True(roster[0].Active)
	s.Equal("mallory@corp", roster[1].User)
	s.Zero(roster[1].Logs)
	s.True(roster[1].Active)
}

func (s *ServiceSuite) TestVerifiedUser() {
	id := s.submitMain()

	ok, err := s.svc.VerifiedUser(s.ctx, userUID, "")
	s.Require().NoError(err)
	s.False(ok)

	rec, err := s.cases.ByID(s.ctx, id)
	s.Require().NoError(err)
	verified := rec.Clone()
	verified.SignatureVerified = s.clock.UnixMilli()
	s.Require().NoError(s.cases.Update(s.ctx, verified))

	ok, err = s.svc.VerifiedUser(s.ctx, userUID, "")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.svc.VerifiedUser(s.ctx, 0, "neo@example.com")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.svc.VerifiedUser(s.ctx, 0, "nobody@example.com")
	s.Require().NoError(err)
	s.False(ok)
}
