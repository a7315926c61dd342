package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc-core/internal/kyc/models"
	dErrors "kyc-core/pkg/domain-errors"
)

type memLogs struct {
	entries []models.StatusLogEntry
}

func (m *memLogs) FindLogs(_ context.Context, filter models.LogFilter) ([]models.StatusLogEntry, error) {
	var out []models.StatusLogEntry
	for _, entry := range m.entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

type AnalyticsSuite struct {
	suite.Suite
	ctx context.Context
}

func TestAnalyticsSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsSuite))
}

func (s *AnalyticsSuite) SetupTest() {
	s.ctx = context.Background()
}

func ms(day int) int64 {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func entry(uid int64, status models.Status, actor string, ts int64, worth int64) models.StatusLogEntry {
	return models.StatusLogEntry{
		UID:         uid,
		Status:      status,
		Actor:       actor,
		NetWorthUSD: worth,
		Timestamp:   ts,
	}
}

func (s *AnalyticsSuite) TestNormalizePrecision() {
	p, err := NormalizePrecision(0)
	s.Require().NoError(err)
	s.Equal(DefaultPrecision, p)

	p, err = NormalizePrecision(0.5)
	s.Require().NoError(err)
	s.Equal(0.5, p)

	_, err = NormalizePrecision(0.10)
	s.True(dErrors.Is(err, dErrors.CodeInvalidPrecision))

	_, err = NormalizePrecision(1.01)
	s.True(dErrors.Is(err, dErrors.CodeInvalidPrecision))
}

func (s *AnalyticsSuite) TestTrimCount() {
	s.Equal(4, TrimCount(100, 0.95))
	s.Equal(2, TrimCount(4, 0.5))
	s.Equal(0, TrimCount(3, 0.95))
	s.Equal(0, TrimCount(10, 1))
}

func (s *AnalyticsSuite) TestGeneralTriggerCountsDistinctCases() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(2), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(3), 0),
		entry(2, models.StatusCanceled, models.ActorUser, ms(4), 0),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Equal([]TriggerCount{
		{Status: models.StatusCanceled, Amount: 1},
		{Status: models.StatusSubmitted, Amount: 2},
	}, report.Trigger)
}

func (s *AnalyticsSuite) TestGeneralFinalStatusIsLatestPerCase() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(2), 0),
		entry(2, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(3), 0),
		entry(2, models.StatusVerified, "compliance@x", ms(5), 100),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Equal([]TriggerCount{
		{Status: models.StatusSubmitted, Amount: 1},
		{Status: models.StatusVerified, Amount: 1},
	}, report.FinalStatus)
}

func (s *AnalyticsSuite) TestGeneralFinalStatusClauseAppliesAfterCollapse() {
	// uid 1 passed through submitted but ended verified; a submitted-only
	// report must not count it.
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
		entry(1, models.StatusVerified, "compliance@x", ms(2), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(3), 0),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{
		Statuses: []models.Status{models.StatusSubmitted},
	}, 1)
	s.Require().NoError(err)

	s.Equal([]TriggerCount{{Status: models.StatusSubmitted, Amount: 1}}, report.FinalStatus)
}

func (s *AnalyticsSuite) TestGeneralAveragePairsFirstOpenerWithLastTarget() {
	// uid 1: incomplete day 1, submitted day 3 -> 2 days.
	// uid 2: incomplete day 1, incomplete again day 2, submitted day 5 -> 4
	// days from the first opener.
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(3), 1000),
		entry(2, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(2, models.StatusIncomplete, models.ActorUser, ms(2), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(5), 3000),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Require().Len(report.Averages, 1)
	avg := report.Averages[0]
	s.Equal(models.StatusSubmitted, avg.Status)
	s.Equal(2, avg.TotalAmount)
	s.Equal(2, avg.ConsideredAmount)
	s.Equal(int64(3*24*3600), avg.Seconds)
	s.Equal(int64(2000), avg.USD)
}

func (s *AnalyticsSuite) TestGeneralAverageVerifiedOpensAtSubmitted() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(4), 0),
		entry(1, models.StatusVerified, "compliance@x", ms(6), 500),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Require().Len(report.Averages, 1)
	avg := report.Averages[0]
	s.Equal(models.StatusVerified, avg.Status)
	s.Equal(int64(2*24*3600), avg.Seconds)
	s.Equal(int64(500), avg.USD)
}

func (s *AnalyticsSuite) TestGeneralAverageOpenerMayPredateWindow() {
	// The incomplete entry falls before the report window start; the pairing
	// still finds it.
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(10), 0),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{Start: ms(5)}, 1)
	s.Require().NoError(err)

	s.Require().Len(report.Averages, 1)
	s.Equal(int64(9*24*3600), report.Averages[0].Seconds)
}

func (s *AnalyticsSuite) TestGeneralAverageTrimsSymmetricOutliers() {
	// Four cycles of 1, 2, 3 and 100 days; precision 0.5 discards the two
	// extremes, leaving 2 and 3 days.
	entries := []models.StatusLogEntry{}
	for i, days := range []int{1, 2, 3, 100} {
		uid := int64(i + 1)
		entries = append(entries,
			entry(uid, models.StatusIncomplete, models.ActorUser, ms(1), 0),
			entry(uid, models.StatusSubmitted, models.ActorUser, ms(1+days), 0),
		)
	}
	engine := New(&memLogs{entries: entries})

	report, err := engine.General(s.ctx, models.LogFilter{}, 0.5)
	s.Require().NoError(err)

	s.Require().Len(report.Averages, 1)
	avg := report.Averages[0]
	s.Equal(4, avg.TotalAmount)
	s.Equal(2, avg.ConsideredAmount)
	s.Equal(int64((2+3)*24*3600/2), avg.Seconds)
}

func (s *AnalyticsSuite) TestGeneralAverageUnpairedCaseStillCounted() {
	// uid 2 never logged an incomplete entry, so it contributes no cycle
	// time but still inflates the population.
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(3), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(4), 0),
	}}
	engine := New(store)

	report, err := engine.General(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Require().Len(report.Averages, 1)
	avg := report.Averages[0]
	s.Equal(2, avg.TotalAmount)
	s.Equal(2, avg.ConsideredAmount)
	s.Equal(int64(2*24*3600/2), avg.Seconds)
}

func (s *AnalyticsSuite) TestAdminReport() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
		entry(1, models.StatusPending, "alice@x", ms(2), 0),
		entry(1, models.StatusVerified, "alice@x", ms(4), 900),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(2), 0),
		entry(2, models.StatusRefused, "bob@x", ms(3), 0),
	}}
	engine := New(store)

	report, err := engine.Admin(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)

	s.Require().Len(report.Trigger, 2)
	s.Equal("alice@x", report.Trigger[0].Actor)
	s.Equal(2, report.Trigger[0].TotalTrigger)
	s.Equal([]TriggerCount{
		{Status: models.StatusPending, Amount: 1},
		{Status: models.StatusVerified, Amount: 1},
	}, report.Trigger[0].Trigger)
	s.Equal("bob@x", report.Trigger[1].Actor)
	s.Equal(1, report.Trigger[1].TotalTrigger)

	s.Require().Len(report.Averages, 1)
	s.Equal("alice@x", report.Averages[0].Actor)
	s.Equal(models.StatusVerified, report.Averages[0].Status)
	s.Equal(int64(3*24*3600), report.Averages[0].Seconds)
	s.Equal(int64(900), report.Averages[0].USD)
}

func (s *AnalyticsSuite) TestAdminReportExcludesOwnerEntries() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
		entry(1, models.StatusCanceled, models.ActorUser, ms(2), 0),
	}}
	engine := New(store)

	report, err := engine.Admin(s.ctx, models.LogFilter{}, 1)
	s.Require().NoError(err)
	s.Empty(report.Trigger)
	s.Empty(report.Averages)
}

func (s *AnalyticsSuite) TestStatsBuckets() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(2), 0),
		entry(2, models.StatusVerified, "alice@x", ms(2), 0),
		entry(3, models.StatusSubmitted, models.ActorUser,
			time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), 0),
	}}
	engine := New(store)

	report, err := engine.Stats(s.ctx, models.LogFilter{}, "month")
	s.Require().NoError(err)

	s.Equal([]StatsBucket{
		{Frame: "2026-03", Status: models.StatusSubmitted, Amount: 2, Admins: map[string]int{}},
		{Frame: "2026-03", Status: models.StatusVerified, Amount: 1, Admins: map[string]int{"alice@x": 1}},
		{Frame: "2026-04", Status: models.StatusSubmitted, Amount: 1, Admins: map[string]int{}},
	}, report.Trigger)
}

func (s *AnalyticsSuite) TestStatsFrameKeys() {
	t := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	s.Equal("2026-01-02", frameKey(t, "day"))
	s.Equal("2026-W01", frameKey(t, "week"))
	s.Equal("2026-01", frameKey(t, "month"))
	s.Equal("2026", frameKey(t, "year"))

	// Jan 1st 2027 falls in ISO week 53 of 2026; the year prefix follows the
	// ISO week-year.
	s.Equal("2026-W53", frameKey(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), "week"))
}

func (s *AnalyticsSuite) TestStatsRejectsUnknownFrame() {
	engine := New(&memLogs{})
	_, err := engine.Stats(s.ctx, models.LogFilter{}, "quarter")
	s.True(dErrors.Is(err, dErrors.CodeInvalidTimeFrame))
}

func (s *AnalyticsSuite) TestFetchLogsUniqueKeepsLatestPerCase() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusIncomplete, models.ActorUser, ms(1), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(2), 0),
		entry(2, models.StatusSubmitted, models.ActorUser, ms(3), 0),
	}}
	engine := New(store)

	logs, err := engine.FetchLogs(s.ctx, models.LogFilter{}, true, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(models.StatusSubmitted, logs[0].Status)
	s.Equal(int64(1), logs[0].UID)
	s.Equal(int64(2), logs[1].UID)
}

func (s *AnalyticsSuite) TestFetchLogsPagination() {
	store := &memLogs{}
	for i := 0; i < 30; i++ {
		store.entries = append(store.entries,
			entry(int64(i), models.StatusSubmitted, models.ActorUser, ms(1)+int64(i), 0))
	}
	engine := New(store)

	logs, err := engine.FetchLogs(s.ctx, models.LogFilter{}, false, models.Page{})
	s.Require().NoError(err)
	s.Len(logs, 25)

	logs, err = engine.FetchLogs(s.ctx, models.LogFilter{}, false, models.Page{Offset: 25})
	s.Require().NoError(err)
	s.Len(logs, 5)

	logs, err = engine.FetchLogs(s.ctx, models.LogFilter{}, false, models.Page{Offset: 100})
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *AnalyticsSuite) TestActorSummary() {
	store := &memLogs{entries: []models.StatusLogEntry{
		entry(1, models.StatusPending, "alice@x", ms(2), 0),
		entry(2, models.StatusVerified, "alice@x", ms(5), 0),
		entry(1, models.StatusSubmitted, models.ActorUser, ms(1), 0),
	}}
	engine := New(store)

	summary, err := engine.ActorSummary(s.ctx)
	s.Require().NoError(err)
	s.Len(summary, 2)
	s.Equal(2, summary["alice@x"].Logs)
	s.Equal(ms(5), summary["alice@x"].LastLog)
	s.Equal(1, summary[models.ActorUser].Logs)
}
