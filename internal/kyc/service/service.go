// Package service implements the case lifecycle operations: the guarded
// mutation pipeline, the redacted read surface, processing, search listings,
// analytics and the admin surface. All policy lives here; stores persist,
// engines compute, the handler only translates.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kyc-core/internal/audit"
	"kyc-core/internal/auth"
	"kyc-core/internal/auth/formtoken"
	"kyc-core/internal/kyc/analytics"
	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/store"
	"kyc-core/internal/notify"
	"kyc-core/internal/objstore"
	"kyc-core/internal/platform/metrics"
)

// SummaryService is the external financial snapshot provider consulted at
// submission time.
type SummaryService interface {
	GetSummary(ctx context.Context, uid int64) (map[string]any, error)
}

type Service struct {
	cases   store.CaseStore
	docs    store.DocumentStore
	logs    store.LogStore
	checks  store.AdminCheckStore
	recents store.RecentStore

	auth      *auth.Service
	forms     *formtoken.Manager
	summary   SummaryService
	uploader  objstore.Uploader
	notifier  notify.Notifier
	publisher audit.Publisher
	reports   *analytics.Engine

	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithUploader(u objstore.Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

// WithClock fixes the time source; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Stores struct {
	Cases       store.CaseStore
	Documents   store.DocumentStore
	Logs        store.LogStore
	AdminChecks store.AdminCheckStore
	Recents     store.RecentStore
}

func New(stores Stores, authSvc *auth.Service, forms *formtoken.Manager, summary SummaryService, opts ...Option) *Service {
	s := &Service{
		cases:     stores.Cases,
		docs:      stores.Documents,
		logs:      stores.Logs,
		checks:    stores.AdminChecks,
		recents:   stores.Recents,
		auth:      authSvc,
		forms:     forms,
		summary:   summary,
		notifier:  notify.Noop{},
		publisher: audit.Noop{},
		tracer:    otel.Tracer("kyc-core/service"),
		log:       slog.Default(),
		now:       time.Now,
	}
	s.reports = analytics.New(stores.Logs)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nowMillis is the write timestamp used everywhere in one operation.
func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// startOp opens a span and returns a closer that records metrics.
func (s *Service) startOp(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	return ctx, func(err error) {
		if err != nil {
			span.SetAttributes(attribute.String("error", err.Error()))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOp(op, time.Since(start).Seconds(), err)
		}
	}
}

// resolve authenticates the caller.
func (s *Service) resolve(ctx context.Context, cred auth.Credential) (*auth.Identity, error) {
	return s.auth.Resolve(ctx, cred)
}

// actor is the value written into the status log for a change.
func actor(id *auth.Identity) string {
	if id.IsAdmin() {
		return id.AdminEmail()
	}
	return models.ActorUser
}

// usdVolume extracts the total USD trading volume from a financial summary
// snapshot; it is the net worth recorded with every status change.
func usdVolume(summary map[string]any) int64 {
	rows, ok := summary["trade_vol_30d"].([]any)
	if !ok {
		return 0
	}
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if curr, _ := row["curr"].(string); curr != "Total (USD)" {
			continue
		}
		switch vol := row["vol"].(type) {
		case float64:
			return int64(vol)
		case int64:
			return vol
		case int:
			return int64(vol)
		}
	}
	return 0
}

// logStatusChange appends to the persistent status log and mirrors the event
// onto the audit bus. The net worth is a fresh point-in-time snapshot, not
// whatever summary the record happens to carry.
func (s *Service) logStatusChange(ctx context.Context, id *auth.Identity, caseID string, uid int64, st models.Status, notes string) {
	who := actor(id)
	var worth int64
	if summary, err := s.summary.GetSummary(ctx, uid); err == nil {
		worth = usdVolume(summary)
	}
	entry := models.StatusLogEntry{
		Actor:       who,
		Status:      st,
		UID:         uid,
		Notes:       notes,
		NetWorthUSD: worth,
		Date:        s.now().UTC(),
		Timestamp:   s.nowMillis(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.log.Error("append status log", "uid", uid, "status", st, "error", err)
	}
	if s.metrics != nil {
		s.metrics.StatusChanges.WithLabelValues(string(st)).Inc()
	}
	s.publisher.Publish(ctx, audit.Event{
		UID:       uid,
		CaseID:    caseID,
		Status:    string(st),
		Actor:     who,
		Notes:     notes,
		Timestamp: s.now().UTC(),
	})
}

// notifyStatus sends the lifecycle email for externally visible transitions.
// Failures are logged and swallowed.
func (s *Service) notifyStatus(ctx context.Context, rec *models.Record, st models.Status) {
	switch st {
	case models.StatusSubmitted, models.StatusVerified, models.StatusCanceled, models.StatusRefused:
	default:
		return
	}
	s.sendStatusMail(ctx, rec, string(st))
}

// sendStatusMail delivers the lifecycle email; failures are logged and
// swallowed.
func (s *Service) sendStatusMail(ctx context.Context, rec *models.Record, label string) {
	if rec.CoreEmail == "" {
		return
	}
	msg := notify.Message{
		To:      []string{rec.CoreEmail},
		Subject: "Compliance information " + label,
		Body:    rec.CoreUsername + ", your verification form has been " + label + ".",
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn("notify failed", "uid", rec.UID, "status", label, "error", err)
		if s.metrics != nil {
			s.metrics.NotifyFailures.Inc()
		}
	}
}
