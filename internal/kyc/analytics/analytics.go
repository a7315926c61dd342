// Package analytics aggregates the append-only status log into review
// pipeline reports: throughput per status, per-admin workload, calendar
// buckets and outlier-trimmed cycle-time averages. Grouping happens at read
// time over fetched entries; the log itself is never reshaped in storage.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kyc-core/internal/kyc/models"
	dErrors "kyc-core/pkg/domain-errors"
)

// LogStore is the slice of the repository the engine needs.
type LogStore interface {
	FindLogs(ctx context.Context, filter models.LogFilter) ([]models.StatusLogEntry, error)
}

type Engine struct {
	logs LogStore
}

func New(logs LogStore) *Engine {
	return &Engine{logs: logs}
}

// DefaultPrecision keeps 95% of samples when the caller does not choose.
const DefaultPrecision = 0.95

// NormalizePrecision applies the default and bounds-checks the retained
// fraction, which must lie in (0.10, 1].
func NormalizePrecision(p float64) (float64, error) {
	if p == 0 {
		return DefaultPrecision, nil
	}
	if p <= 0.10 || p > 1 {
		return 0, dErrors.New(dErrors.CodeInvalidPrecision, "")
	}
	return p, nil
}

// TriggerCount is how many distinct cases entered a status.
type TriggerCount struct {
	Status models.Status `json:"status"`
	Amount int           `json:"amount"`
}

// Average is a trimmed-mean cycle report for one target status.
type Average struct {
	Status           models.Status `json:"status"`
	Seconds          int64         `json:"seconds"`
	USD              int64         `json:"usd"`
	ConsideredAmount int           `json:"consideredAmount"`
	TotalAmount      int           `json:"totalAmount"`
}

// GeneralReport is the status-grouped view of the pipeline.
type GeneralReport struct {
	Trigger     []TriggerCount `json:"trigger"`
	FinalStatus []TriggerCount `json:"finalStatus"`
	Averages    []Average      `json:"averages"`
}

// AdminTrigger is one admin's workload breakdown.
type AdminTrigger struct {
	Actor        string         `json:"actor"`
	TotalTrigger int            `json:"totalTrigger"`
	Trigger      []TriggerCount `json:"trigger"`
}

// AdminAverage is one admin's verified-cycle trimmed mean.
type AdminAverage struct {
	Actor string `json:"actor"`
	Average
}

// AdminReport groups the pipeline by acting admin.
type AdminReport struct {
	Trigger  []AdminTrigger `json:"trigger"`
	Averages []AdminAverage `json:"averages"`
}

// StatsBucket is one (time frame, status) cell with per-admin sub-counts.
type StatsBucket struct {
	Frame  string         `json:"frame"`
	Status models.Status  `json:"status"`
	Amount int            `json:"amount"`
	Admins map[string]int `json:"admins"`
}

// StatsReport is the time-bucketed view.
type StatsReport struct {
	Trigger     []StatsBucket `json:"trigger"`
	FinalStatus []StatsBucket `json:"finalStatus"`
}

// sample is one collapsed log row used for averages and sub-counts.
type sample struct {
	uid   int64
	last  int64
	actor string
	worth int64
}

// averagedStatuses are the cycle endpoints reported by the general mode.
var averagedStatuses = []models.Status{models.StatusSubmitted, models.StatusVerified}

// precedingStatus maps a cycle target to the state whose first entry opens
// the cycle.
func precedingStatus(target models.Status) models.Status {
	if target == models.StatusVerified {
		return models.StatusSubmitted
	}
	return models.StatusIncomplete
}

// General computes trigger counts, final-status counts and trimmed-mean
// cycles for the filtered log.
func (e *Engine) General(ctx context.Context, filter models.LogFilter, precision float64) (*GeneralReport, error) {
	entries, err := e.logs.FindLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	trigger := triggerCounts(collapseByStatusUID(entries))

	finals, err := e.finalStatusSamples(ctx, filter)
	if err != nil {
		return nil, err
	}
	finalStatus := make([]TriggerCount, 0, len(finals))
	averages := make([]Average, 0, len(averagedStatuses))
	for _, st := range sortedStatuses(finals) {
		group := finals[st]
		finalStatus = append(finalStatus, TriggerCount{Status: st, Amount: len(group)})
		if !isAveraged(st) {
			continue
		}
		avg, err := e.average(ctx, filter, st, group, precision)
		if err != nil {
			return nil, err
		}
		averages = append(averages, avg)
	}
	return &GeneralReport{Trigger: trigger, FinalStatus: finalStatus, Averages: averages}, nil
}

// Admin computes per-actor trigger totals and verified-cycle averages,
// ignoring owner-originated entries.
func (e *Engine) Admin(ctx context.Context, filter models.LogFilter, precision float64) (*AdminReport, error) {
	entries, err := e.logs.FindLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	type actorStatus struct {
		actor  string
		status models.Status
	}
	groups := make(map[actorStatus][]sample)
	counts := make(map[actorStatus]int)
	for _, entry := range entries {
		key := actorStatus{actor: entry.Actor, status: entry.Status}
		groups[key] = append(groups[key], sample{
			uid:   entry.UID,
			last:  entry.Timestamp,
			actor: entry.Actor,
			worth: entry.NetWorthUSD,
		})
		counts[key]++
	}

	byActor := make(map[string][]TriggerCount)
	for key, amount := range counts {
		if key.actor == models.ActorUser {
			continue
		}
		byActor[key.actor] = append(byActor[key.actor], TriggerCount{Status: key.status, Amount: amount})
	}

	report := &AdminReport{}
	for _, actor := range sortedKeys(byActor) {
		triggers := byActor[actor]
		sort.Slice(triggers, func(i, j int) bool { return triggers[i].Status < triggers[j].Status })
		total := 0
		for _, t := range triggers {
			total += t.Amount
		}
		report.Trigger = append(report.Trigger, AdminTrigger{
			Actor:        actor,
			TotalTrigger: total,
			Trigger:      triggers,
		})

		verified := groups[actorStatus{actor: actor, status: models.StatusVerified}]
		if len(verified) == 0 {
			continue
		}
		avg, err := e.average(ctx, filter, models.StatusVerified, verified, precision)
		if err != nil {
			return nil, err
		}
		report.Averages = append(report.Averages, AdminAverage{Actor: actor, Average: avg})
	}
	return report, nil
}

// ValidTimeFrames for the stats mode.
var ValidTimeFrames = map[string]struct{}{
	"day": {}, "week": {}, "month": {}, "year": {},
}

// Stats buckets trigger and final-status counts by calendar frame, each cell
// carrying a per-admin sub-count.
func (e *Engine) Stats(ctx context.Context, filter models.LogFilter, timeFrame string) (*StatsReport, error) {
	if timeFrame == "" {
		timeFrame = "month"
	}
	if _, ok := ValidTimeFrames[timeFrame]; !ok {
		return nil, dErrors.New(dErrors.CodeInvalidTimeFrame, timeFrame)
	}

	entries, err := e.logs.FindLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	trigger := bucketize(collapseByStatusUID(entries), timeFrame)

	finals, err := e.finalStatusSamples(ctx, filter)
	if err != nil {
		return nil, err
	}
	finalStatus := bucketize(finals, timeFrame)

	return &StatsReport{Trigger: trigger, FinalStatus: finalStatus}, nil
}

// FetchLogs is the raw read path behind statusLogs: filtered entries, or in
// unique mode the latest entry per uid, paginated.
func (e *Engine) FetchLogs(ctx context.Context, filter models.LogFilter, unique bool, page models.Page) ([]models.StatusLogEntry, error) {
	entries, err := e.logs.FindLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if unique {
		latest := make(map[int64]models.StatusLogEntry)
		for _, entry := range entries {
			if cur, ok := latest[entry.UID]; !ok || entry.Timestamp >= cur.Timestamp {
				latest[entry.UID] = entry
			}
		}
		uids := make([]int64, 0, len(latest))
		for uid := range latest {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
		entries = entries[:0:0]
		for _, uid := range uids {
			entries = append(entries, latest[uid])
		}
	}
	page = page.Normalize()
	if page.Offset >= len(entries) {
		return nil, nil
	}
	end := page.Offset + page.Amount
	if end > len(entries) {
		end = len(entries)
	}
	return entries[page.Offset:end], nil
}

// AdminActivity summarizes the log per actor: entry count and last activity.
type AdminActivity struct {
	Actor   string
	Logs    int
	LastLog int64
}

// ActorSummary groups the whole log by actor for the fetchAdmins surface.
func (e *Engine) ActorSummary(ctx context.Context) (map[string]AdminActivity, error) {
	entries, err := e.logs.FindLogs(ctx, models.LogFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]AdminActivity)
	for _, entry := range entries {
		activity := out[entry.Actor]
		activity.Actor = entry.Actor
		activity.Logs++
		if entry.Timestamp > activity.LastLog {
			activity.LastLog = entry.Timestamp
		}
		out[entry.Actor] = activity
	}
	return out, nil
}

// finalStatusSamples collapses the log (status clause removed) to the latest
// entry per uid, groups by that final status, then re-applies the status
// clause.
func (e *Engine) finalStatusSamples(ctx context.Context, filter models.LogFilter) (map[models.Status][]sample, error) {
	entries, err := e.logs.FindLogs(ctx, filter.WithoutStatuses())
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]models.StatusLogEntry)
	for _, entry := range entries {
		if cur, ok := latest[entry.UID]; !ok || entry.Timestamp >= cur.Timestamp {
			latest[entry.UID] = entry
		}
	}
	groups := make(map[models.Status][]sample)
	for _, entry := range latest {
		if len(filter.Statuses) > 0 && !statusIn(filter.Statuses, entry.Status) {
			continue
		}
		groups[entry.Status] = append(groups[entry.Status], sample{
			uid:   entry.UID,
			last:  entry.Timestamp,
			actor: entry.Actor,
			worth: entry.NetWorthUSD,
		})
	}
	return groups, nil
}

// average pairs each uid's first entry into the preceding state with its
// last entry into the target state, trims symmetric outliers, and averages
// the remainder.
func (e *Engine) average(ctx context.Context, filter models.LogFilter, target models.Status, lastSamples []sample, precision float64) (Average, error) {
	uids := make([]int64, 0, len(lastSamples))
	seen := make(map[int64]struct{})
	for _, s := range lastSamples {
		if _, dup := seen[s.uid]; dup {
			continue
		}
		seen[s.uid] = struct{}{}
		uids = append(uids, s.uid)
	}

	// The cycle opener may predate the report window, so the start bound is
	// lifted while the remaining clauses stay in force.
	firstFilter := filter.WithoutStatuses().WithoutTimeStart()
	firstFilter.UIDs = uids
	firstFilter.Statuses = []models.Status{precedingStatus(target)}
	firstEntries, err := e.logs.FindLogs(ctx, firstFilter)
	if err != nil {
		return Average{}, err
	}

	first := make(map[int64]int64)
	for _, entry := range firstEntries {
		if cur, ok := first[entry.UID]; !ok || entry.Timestamp < cur {
			first[entry.UID] = entry.Timestamp
		}
	}

	// Last sample wins per uid, mirroring the collapse order of the source.
	last := make(map[int64]sample)
	for _, s := range lastSamples {
		last[s.uid] = s
	}

	var times, worths []int64
	for uid, s := range last {
		opened, ok := first[uid]
		if !ok {
			continue
		}
		times = append(times, s.last-opened)
		worths = append(worths, s.worth)
	}

	total := len(lastSamples)
	notConsidered := TrimCount(total, precision)
	considered := total - notConsidered

	timeSum := trimAndSum(times, notConsidered)
	worthSum := trimAndSum(worths, notConsidered)

	avg := Average{Status: target, ConsideredAmount: considered, TotalAmount: total}
	if considered > 0 {
		avg.Seconds = timeSum / int64(considered) / int64(time.Second/time.Millisecond)
		avg.USD = worthSum / int64(considered)
	}
	return avg, nil
}

// TrimCount is the number of samples discarded for a given population and
// precision: floor((1-p)*N/2)*2, split evenly between both extremes.
func TrimCount(total int, precision float64) int {
	return int((1-precision)*float64(total)/2) * 2
}

func trimAndSum(values []int64, notConsidered int) int64 {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	lo, hi := 0, len(values)
	for i := 0; i < notConsidered; i += 2 {
		if hi-lo < 2 {
			break
		}
		lo++
		hi--
	}
	var sum int64
	for _, v := range values[lo:hi] {
		sum += v
	}
	return sum
}

// collapseByStatusUID keeps the most recent entry per (status, uid) pair,
// grouped by status, so re-triggering the same status on one case counts
// once.
func collapseByStatusUID(entries []models.StatusLogEntry) map[models.Status][]sample {
	type statusUID struct {
		status models.Status
		uid    int64
	}
	latest := make(map[statusUID]models.StatusLogEntry)
	for _, entry := range entries {
		key := statusUID{status: entry.Status, uid: entry.UID}
		if cur, ok := latest[key]; !ok || entry.Timestamp >= cur.Timestamp {
			latest[key] = entry
		}
	}
	groups := make(map[models.Status][]sample)
	for key, entry := range latest {
		groups[key.status] = append(groups[key.status], sample{
			uid:   entry.UID,
			last:  entry.Timestamp,
			actor: entry.Actor,
			worth: entry.NetWorthUSD,
		})
	}
	return groups
}

func triggerCounts(groups map[models.Status][]sample) []TriggerCount {
	out := make([]TriggerCount, 0, len(groups))
	for _, st := range sortedStatuses(groups) {
		out = append(out, TriggerCount{Status: st, Amount: len(groups[st])})
	}
	return out
}

func bucketize(groups map[models.Status][]sample, timeFrame string) []StatsBucket {
	type cell struct {
		frame  string
		status models.Status
	}
	cells := make(map[cell]*StatsBucket)
	for st, samples := range groups {
		for _, s := range samples {
			frame := frameKey(time.UnixMilli(s.last).UTC(), timeFrame)
			key := cell{frame: frame, status: st}
			bucket, ok := cells[key]
			if !ok {
				bucket = &StatsBucket{Frame: frame, Status: st, Admins: make(map[string]int)}
				cells[key] = bucket
			}
			bucket.Amount++
			if s.actor != models.ActorUser {
				bucket.Admins[s.actor]++
			}
		}
	}
	out := make([]StatsBucket, 0, len(cells))
	for _, bucket := range cells {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// frameKey renders a calendar-aligned bucket key. Weeks use the ISO
// year-week form so buckets from different years never collide.
func frameKey(t time.Time, timeFrame string) string {
	switch timeFrame {
	case "day":
		return t.Format("2006-01-02")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "year":
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}

func isAveraged(st models.Status) bool {
	for _, s := range averagedStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func sortedStatuses(groups map[models.Status][]sample) []models.Status {
	out := make([]models.Status, 0, len(groups))
	for st := range groups {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func statusIn(list []models.Status, st models.Status) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}
