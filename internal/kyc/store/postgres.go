package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/search"
	"kyc-core/pkg/platform/sentinel"
)

// PostgresCaseStore persists case records, keeping the free-form whitelisted
// fields and section map as jsonb.
type PostgresCaseStore struct {
	db *pgxpool.Pool
}

func NewPostgresCases(db *pgxpool.Pool) *PostgresCaseStore {
	return &PostgresCaseStore{db: db}
}

// EnsureSchema creates the case tables when missing. Called once at startup;
// not a substitute for real migrations in multi-node deployments.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS kyc_cases (
	id TEXT PRIMARY KEY,
	uid BIGINT NOT NULL,
	is_main_account BOOLEAN NOT NULL,
	type_account TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	sections JSONB NOT NULL DEFAULT '{}',
	signature_submitted BIGINT NOT NULL DEFAULT 0,
	signature_verified BIGINT NOT NULL DEFAULT 0,
	signature_canceled BIGINT NOT NULL DEFAULT 0,
	signature_refused BIGINT NOT NULL DEFAULT 0,
	signature_pending BIGINT NOT NULL DEFAULT 0,
	checked_by_admin BOOLEAN NOT NULL DEFAULT FALSE,
	is_monitored BOOLEAN NOT NULL DEFAULT FALSE,
	summary JSONB,
	core_username TEXT NOT NULL DEFAULT '',
	core_email TEXT NOT NULL DEFAULT '',
	forms JSONB NOT NULL DEFAULT '[]',
	fields JSONB NOT NULL DEFAULT '{}',
	ts BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS kyc_cases_uid_idx ON kyc_cases (uid);
CREATE INDEX IF NOT EXISTS kyc_cases_status_idx ON kyc_cases (status) WHERE is_main_account;

CREATE TABLE IF NOT EXISTS kyc_documents (
	id TEXT PRIMARY KEY,
	uid BIGINT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	key TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	form TEXT NOT NULL DEFAULT '',
	remark TEXT NOT NULL DEFAULT '',
	account_id TEXT NOT NULL DEFAULT '',
	is_private BOOLEAN NOT NULL DEFAULT FALSE,
	ts BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS kyc_documents_uid_idx ON kyc_documents (uid);

CREATE TABLE IF NOT EXISTS kyc_status_logs (
	id BIGSERIAL PRIMARY KEY,
	actor TEXT NOT NULL,
	status TEXT NOT NULL,
	uid BIGINT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	net_worth_usd BIGINT NOT NULL DEFAULT 0,
	ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS kyc_status_logs_uid_idx ON kyc_status_logs (uid);

CREATE TABLE IF NOT EXISTS kyc_admin_checks (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	admin TEXT NOT NULL,
	open_ts BIGINT NOT NULL DEFAULT 0,
	saved_ts BIGINT NOT NULL DEFAULT 0,
	UNIQUE (case_id, admin)
);

CREATE TABLE IF NOT EXISTS kyc_recent_views (
	id TEXT PRIMARY KEY,
	admin TEXT NOT NULL,
	uid BIGINT NOT NULL,
	case_id TEXT NOT NULL DEFAULT '',
	ts BIGINT NOT NULL,
	UNIQUE (admin, uid)
);
`)
	return err
}

const caseColumns = `id, uid, is_main_account, type_account, status, sections,
	signature_submitted, signature_verified, signature_canceled,
	signature_refused, signature_pending, checked_by_admin, is_monitored,
	summary, core_username, core_email, forms, fields, ts`

func (s *PostgresCaseStore) Insert(ctx context.Context, rec *models.Record) error {
	args, err := caseArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO kyc_cases (`+caseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return err
}

func (s *PostgresCaseStore) Update(ctx context.Context, rec *models.Record) error {
	args, err := caseArgs(rec)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE kyc_cases SET
		uid=$2, is_main_account=$3, type_account=$4, status=$5, sections=$6,
		signature_submitted=$7, signature_verified=$8, signature_canceled=$9,
		signature_refused=$10, signature_pending=$11, checked_by_admin=$12,
		is_monitored=$13, summary=$14, core_username=$15, core_email=$16,
		forms=$17, fields=$18, ts=$19
		WHERE id=$1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCaseStore) ByID(ctx context.Context, id string) (*models.Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+caseColumns+` FROM kyc_cases WHERE id=$1`, id)
	return scanCase(row)
}

func (s *PostgresCaseStore) Main(ctx context.Context, uid int64) (*models.Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM kyc_cases WHERE uid=$1 AND is_main_account LIMIT 1`, uid)
	return scanCase(row)
}

func (s *PostgresCaseStore) Members(ctx context.Context, uid int64) ([]*models.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+caseColumns+` FROM kyc_cases
		 WHERE uid=$1 AND NOT is_main_account ORDER BY ts, id`, uid)
	if err != nil {
		return nil, err
	}
	return scanCases(rows)
}

func (s *PostgresCaseStore) ByUID(ctx context.Context, uid int64) ([]*models.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+caseColumns+` FROM kyc_cases
		 WHERE uid=$1 ORDER BY is_main_account DESC, ts, id`, uid)
	if err != nil {
		return nil, err
	}
	return scanCases(rows)
}

func (s *PostgresCaseStore) Find(ctx context.Context, q FindQuery) ([]*models.Record, error) {
	where, args := buildCaseWhere(q)
	page := q.Page.Normalize()

	order := "ts"
	if page.Order == "uid" {
		order = "uid"
	}
	dir := "ASC"
	if page.Direction < 0 {
		dir = "DESC"
	}

	sql := fmt.Sprintf(`SELECT %s FROM kyc_cases%s ORDER BY %s %s, id OFFSET $%d LIMIT $%d`,
		caseColumns, where, order, dir, len(args)+1, len(args)+2)
	args = append(args, page.Offset, page.Amount)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanCases(rows)
}

func (s *PostgresCaseStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM kyc_cases WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCaseStore) DeleteByUID(ctx context.Context, uid int64) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM kyc_cases WHERE uid=$1`, uid)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func caseArgs(rec *models.Record) ([]any, error) {
	sections, err := json.Marshal(rec.Sections)
	if err != nil {
		return nil, err
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, err
	}
	forms := rec.Forms
	if forms == nil {
		forms = []string{}
	}
	formsJSON, err := json.Marshal(forms)
	if err != nil {
		return nil, err
	}
	var summary []byte
	if rec.Summary != nil {
		summary, err = json.Marshal(rec.Summary)
		if err != nil {
			return nil, err
		}
	}
	return []any{
		rec.ID, rec.UID, rec.IsMainAccount, string(rec.TypeAccount), string(rec.Status),
		sections, rec.SignatureSubmitted, rec.SignatureVerified, rec.SignatureCanceled,
		rec.SignatureRefused, rec.SignaturePending, rec.CheckedByAdmin, rec.IsMonitored,
		summary, rec.CoreUsername, rec.CoreEmail, formsJSON, fields, rec.Timestamp,
	}, nil
}

func scanCase(row pgx.Row) (*models.Record, error) {
	var (
		rec                         models.Record
		typeAccount, status         string
		sections, formsJSON, fields []byte
		summary                     []byte
	)
	err := row.Scan(&rec.ID, &rec.UID, &rec.IsMainAccount, &typeAccount, &status,
		&sections, &rec.SignatureSubmitted, &rec.SignatureVerified, &rec.SignatureCanceled,
		&rec.SignatureRefused, &rec.SignaturePending, &rec.CheckedByAdmin, &rec.IsMonitored,
		&summary, &rec.CoreUsername, &rec.CoreEmail, &formsJSON, &fields, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.TypeAccount = models.AccountType(typeAccount)
	rec.Status = models.Status(status)
	if err := json.Unmarshal(sections, &rec.Sections); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(formsJSON, &rec.Forms); err != nil {
		return nil, err
	}
	if summary != nil {
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func scanCases(rows pgx.Rows) ([]*models.Record, error) {
	defer rows.Close()
	var out []*models.Record
	for rows.Next() {
		rec, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// buildCaseWhere compiles a FindQuery into a WHERE clause. The search query
// compiles to a disjunction of per-clause conjunctions: prefix conditions
// become ILIKE with escaped wildcards, exact conditions plain equality, and
// person-name fields read from the jsonb column.
func buildCaseWhere(q FindQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		args = append(args, vals...)
		conds = append(conds, cond)
	}

	if q.MainOnly {
		conds = append(conds, "is_main_account")
	}
	if q.TypeAccount != "" {
		add(fmt.Sprintf("type_account=$%d", len(args)+1), string(q.TypeAccount))
	}
	if len(q.Statuses) > 0 {
		ph := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			args = append(args, string(st))
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, "status IN ("+strings.Join(ph, ",")+")")
	}
	if len(q.UIDs) > 0 {
		add(fmt.Sprintf("uid = ANY($%d)", len(args)+1), q.UIDs)
	}
	if q.Monitored != nil {
		add(fmt.Sprintf("is_monitored=$%d", len(args)+1), *q.Monitored)
	}
	if q.Search != nil {
		var clauses []string
		for _, clause := range q.Search.Clauses {
			var parts []string
			for _, cond := range clause {
				parts = append(parts, compileCond(cond, &args))
			}
			clauses = append(clauses, "("+strings.Join(parts, " AND ")+")")
		}
		if len(clauses) > 0 {
			conds = append(conds, "("+strings.Join(clauses, " OR ")+")")
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func compileCond(cond search.Cond, args *[]any) string {
	if cond.Field == search.FieldUID {
		*args = append(*args, cond.UID)
		return fmt.Sprintf("uid=$%d", len(*args))
	}

	var col string
	switch cond.Field {
	case search.FieldUsername:
		col = "core_username"
	case search.FieldEmail:
		col = "core_email"
	default:
		col = fmt.Sprintf("fields->>'%s'", cond.Field)
	}

	if cond.Exact {
		*args = append(*args, cond.Value)
		return fmt.Sprintf("%s=$%d", col, len(*args))
	}
	*args = append(*args, escapeLike(cond.Value)+"%")
	return fmt.Sprintf("%s ILIKE $%d", col, len(*args))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// PostgresDocumentStore persists document metadata.
type PostgresDocumentStore struct {
	db *pgxpool.Pool
}

func NewPostgresDocuments(db *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

const docColumns = `id, uid, url, key, filename, type, form, remark, account_id, is_private, ts`

func (s *PostgresDocumentStore) Upsert(ctx context.Context, doc *models.Document) error {
	_, err := s.db.Exec(ctx, `INSERT INTO kyc_documents (`+docColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			uid=EXCLUDED.uid, url=EXCLUDED.url, key=EXCLUDED.key,
			filename=EXCLUDED.filename, type=EXCLUDED.type, form=EXCLUDED.form,
			remark=EXCLUDED.remark, account_id=EXCLUDED.account_id,
			is_private=EXCLUDED.is_private, ts=EXCLUDED.ts`,
		doc.ID, doc.UID, doc.URL, doc.Key, doc.Filename, doc.Type, doc.Form,
		doc.Remark, doc.AccountID, doc.IsPrivate, doc.Timestamp)
	return err
}

func (s *PostgresDocumentStore) ByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx, `SELECT `+docColumns+` FROM kyc_documents WHERE id=$1`, id).
		Scan(&doc.ID, &doc.UID, &doc.URL, &doc.Key, &doc.Filename, &doc.Type,
			&doc.Form, &doc.Remark, &doc.AccountID, &doc.IsPrivate, &doc.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresDocumentStore) ByUID(ctx context.Context, uid int64, page models.Page) ([]*models.Document, error) {
	page = page.Normalize()
	dir := "ASC"
	if page.Direction < 0 {
		dir = "DESC"
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM kyc_documents WHERE uid=$1 ORDER BY ts %s, id OFFSET $2 LIMIT $3`,
		docColumns, dir), uid, page.Offset, page.Amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UID, &doc.URL, &doc.Key, &doc.Filename,
			&doc.Type, &doc.Form, &doc.Remark, &doc.AccountID, &doc.IsPrivate,
			&doc.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *PostgresDocumentStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM kyc_documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresDocumentStore) DeleteByUID(ctx context.Context, uid int64) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM kyc_documents WHERE uid=$1`, uid)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PostgresLogStore appends to and reads the status log.
type PostgresLogStore struct {
	db *pgxpool.Pool
}

func NewPostgresLogs(db *pgxpool.Pool) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

func (s *PostgresLogStore) Append(ctx context.Context, entry models.StatusLogEntry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO kyc_status_logs
		(actor, status, uid, notes, net_worth_usd, ts)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.Actor, string(entry.Status), entry.UID, entry.Notes,
		entry.NetWorthUSD, entry.Timestamp)
	return err
}

func (s *PostgresLogStore) FindLogs(ctx context.Context, filter models.LogFilter) ([]models.StatusLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(filter.UIDs) > 0 {
		add("uid = ANY($%d)", filter.UIDs)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", statuses)
	}
	if len(filter.Actors) > 0 {
		add("actor = ANY($%d)", filter.Actors)
	}
	if filter.MinWorth != 0 {
		add("net_worth_usd >= $%d", filter.MinWorth)
	}
	if filter.MaxWorth != 0 {
		add("net_worth_usd < $%d", filter.MaxWorth)
	}
	if filter.Start != 0 {
		add("ts >= $%d", filter.Start)
	}
	if filter.End != 0 {
		add("ts < $%d", filter.End)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.Query(ctx,
		`SELECT actor, status, uid, notes, net_worth_usd, ts FROM kyc_status_logs`+
			where+` ORDER BY ts, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StatusLogEntry
	for rows.Next() {
		var (
			entry  models.StatusLogEntry
			status string
		)
		if err := rows.Scan(&entry.Actor, &status, &entry.UID, &entry.Notes,
			&entry.NetWorthUSD, &entry.Timestamp); err != nil {
			return nil, err
		}
		entry.Status = models.Status(status)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PostgresAdminCheckStore persists (case, admin) open/saved markers.
type PostgresAdminCheckStore struct {
	db *pgxpool.Pool
}

func NewPostgresAdminChecks(db *pgxpool.Pool) *PostgresAdminCheckStore {
	return &PostgresAdminCheckStore{db: db}
}

func (s *PostgresAdminCheckStore) Open(ctx context.Context, caseID, admin string, ts int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO kyc_admin_checks (id, case_id, admin, open_ts)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (case_id, admin) DO UPDATE SET open_ts=EXCLUDED.open_ts, saved_ts=0`,
		uuid.NewString(), caseID, admin, ts)
	return err
}

func (s *PostgresAdminCheckStore) MarkSaved(ctx context.Context, caseID, admin string, ts int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE kyc_admin_checks SET saved_ts=$3 WHERE case_id=$1 AND admin=$2`,
		caseID, admin, ts)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresAdminCheckStore) ByCase(ctx context.Context, caseID string) ([]models.AdminCheck, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, case_id, admin, open_ts, saved_ts FROM kyc_admin_checks
		 WHERE case_id=$1 ORDER BY admin`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdminCheck
	for rows.Next() {
		var check models.AdminCheck
		if err := rows.Scan(&check.ID, &check.CaseID, &check.Admin,
			&check.OpenTimestamp, &check.SavedTimestamp); err != nil {
			return nil, err
		}
		out = append(out, check)
	}
	return out, rows.Err()
}

// PostgresRecentStore persists recently-viewed markers, pruned per admin.
type PostgresRecentStore struct {
	db *pgxpool.Pool
}

func NewPostgresRecents(db *pgxpool.Pool) *PostgresRecentStore {
	return &PostgresRecentStore{db: db}
}

func (s *PostgresRecentStore) Touch(ctx context.Context, view models.RecentView) error {
	if view.ID == "" {
		view.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO kyc_recent_views (id, admin, uid, case_id, ts)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (admin, uid) DO UPDATE SET case_id=EXCLUDED.case_id, ts=EXCLUDED.ts`,
		view.ID, view.Admin, view.UID, view.CaseID, view.Timestamp)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `DELETE FROM kyc_recent_views
		WHERE admin=$1 AND id NOT IN (
			SELECT id FROM kyc_recent_views WHERE admin=$1 ORDER BY ts DESC LIMIT $2)`,
		view.Admin, RecentCap)
	return err
}

func (s *PostgresRecentStore) ByAdmin(ctx context.Context, admin string) ([]models.RecentView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, admin, uid, case_id, ts FROM kyc_recent_views
		 WHERE admin=$1 ORDER BY ts DESC`, admin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RecentView
	for rows.Next() {
		var view models.RecentView
		if err := rows.Scan(&view.ID, &view.Admin, &view.UID, &view.CaseID,
			&view.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, rows.Err()
}
