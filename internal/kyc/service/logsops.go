package service

import (
	"context"
	"sort"

	"kyc-core/internal/auth"
	"kyc-core/internal/kyc/analytics"
	"kyc-core/internal/kyc/models"
	dErrors "kyc-core/pkg/domain-errors"
)

// StatusLogs exposes the raw audit log to admins, optionally collapsed to
// the latest entry per uid.
func (s *Service) StatusLogs(ctx context.Context, cred auth.Credential, filter models.LogFilter, unique bool, page models.Page) (_ []models.StatusLogEntry, err error) {
	ctx, done := s.startOp(ctx, "status_logs")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeMustBeAdminToFetchLogs, "")
	}
	return s.reports.FetchLogs(ctx, filter, unique, page)
}

// Analytics report modes.
const (
	AnalyticsGeneral = "general"
	AnalyticsAdmin   = "admin"
	AnalyticsStats   = "stats"
)

// Analytics dispatches to the aggregation engine. Admins only.
func (s *Service) Analytics(ctx context.Context, cred auth.Credential, reportType string, filter models.LogFilter, precision float64, timeFrame string) (_ any, err error) {
	ctx, done := s.startOp(ctx, "analytics")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeMustBeAdminForAnalytics, "")
	}
	precision, err = analytics.NormalizePrecision(precision)
	if err != nil {
		return nil, err
	}

	switch reportType {
	case AnalyticsGeneral:
		return s.reports.General(ctx, filter, precision)
	case AnalyticsAdmin:
		return s.reports.Admin(ctx, filter, precision)
	case AnalyticsStats:
		return s.reports.Stats(ctx, filter, timeFrame)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidAnalyticsType, reportType)
	}
}

// AdminInfo is one row of the admin roster: log activity merged with the
// configured active admin set.
type AdminInfo struct {
	User    string `json:"user"`
	Logs    int    `json:"logs"`
	LastLog int64  `json:"last_log"`
	Active  bool   `json:"active"`
}

// FetchAdmins merges per-actor log activity with the configured admin
// roster. Full-access admins only.
func (s *Service) FetchAdmins(ctx context.Context, cred auth.Credential) (_ []AdminInfo, err error) {
	ctx, done := s.startOp(ctx, "fetch_admins")
	defer func() { done(err) }()

	id, err := s.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if !auth.CheckAccessLevel(id, auth.LevelFull) {
		return nil, dErrors.New(dErrors.CodeMustBeSuperAdmin, "")
	}

	summary, err := s.reports.ActorSummary(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool)
	for _, email := range s.auth.ActiveAdmins() {
		active[email] = true
	}

	var out []AdminInfo
	for actor, activity := range summary {
		if actor == models.ActorUser {
			continue
		}
		out = append(out, AdminInfo{
			User:    actor,
			Logs:    activity.Logs,
			LastLog: activity.LastLog,
			Active:  active[actor],
		})
		delete(active, actor)
	}
	for email := range active {
		out = append(out, AdminInfo{User: email, Active: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

// LoginAdmin opens an admin session; the handler surfaces the token.
func (s *Service) LoginAdmin(ctx context.Context, email, password, ip, userAgent string) (*auth.Session, error) {
	return s.auth.LoginAdmin(ctx, email, password, ip, userAgent)
}

// LogoutAdmin revokes an admin session token.
func (s *Service) LogoutAdmin(ctx context.Context, token string) error {
	return s.auth.LogoutAdmin(ctx, token)
}

// SweepExpired is the periodic expiration hook driven by the scheduler.
// Records never expire under the current retention rules, so the sweep only
// reports that it ran; the scheduling seam stays in place for when they do.
func (s *Service) SweepExpired(ctx context.Context) error {
	_, done := s.startOp(ctx, "sweep_expired")
	defer func() { done(nil) }()
	s.log.Debug("expiration sweep ran", "expired", 0)
	return nil
}
