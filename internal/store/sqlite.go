package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tacit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rules (
	id                 TEXT PRIMARY KEY,
	text               TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT 'general',
	confidence         REAL NOT NULL DEFAULT 0.8,
	source_kind        TEXT NOT NULL DEFAULT 'pr',
	source_ref         TEXT NOT NULL DEFAULT '',
	provenance_url     TEXT NOT NULL DEFAULT '',
	provenance_summary TEXT NOT NULL DEFAULT '',
	applicable_paths   TEXT NOT NULL DEFAULT '[]',
	feedback_score     INTEGER NOT NULL DEFAULT 0,
	published          INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS proposals (
	id                TEXT PRIMARY KEY,
	text              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT 'general',
	confidence        REAL NOT NULL DEFAULT 0.8,
	source_excerpt    TEXT NOT NULL DEFAULT '',
	proposed_by       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	contributor_count INTEGER NOT NULL DEFAULT 1,
	reviewed_by       TEXT NOT NULL DEFAULT '',
	feedback          TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contributions (
	id                  TEXT PRIMARY KEY,
	proposal_id         TEXT NOT NULL REFERENCES proposals(id),
	contributor_name    TEXT NOT NULL,
	text                TEXT NOT NULL,
	original_confidence REAL NOT NULL DEFAULT 0.8,
	source_excerpt      TEXT NOT NULL DEFAULT '',
	similarity_score    REAL NOT NULL DEFAULT 1.0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decision_trail (
	id          TEXT PRIMARY KEY,
	rule_id     TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	source_ref  TEXT NOT NULL DEFAULT '',
	timestamp   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id           TEXT PRIMARY KEY,
	repo         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	stage        TEXT NOT NULL DEFAULT 'initializing',
	tasks_total  INTEGER NOT NULL DEFAULT 0,
	tasks_failed INTEGER NOT NULL DEFAULT 0,
	rules_found  INTEGER NOT NULL DEFAULT 0,
	prs_analyzed INTEGER NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(category);
CREATE INDEX IF NOT EXISTS idx_rules_source_kind ON rules(source_kind);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);
CREATE INDEX IF NOT EXISTS idx_contributions_proposal_id ON contributions(proposal_id);
CREATE INDEX IF NOT EXISTS idx_decision_trail_rule_id ON decision_trail(rule_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_repo ON extraction_runs(repo);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Rules ---

func (s *SQLiteStore) CreateRule(ctx context.Context, r *model.Rule) (*model.Rule, error) {
	created := *r
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	paths, err := marshalPaths(created.ApplicablePaths)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, text, category, confidence, source_kind, source_ref,
		                    provenance_url, provenance_summary, applicable_paths,
		                    feedback_score, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Text, string(created.Category), created.Confidence,
		string(created.SourceKind), created.SourceRef, created.ProvenanceURL,
		created.ProvenanceSummary, paths, created.FeedbackScore,
		boolToInt(created.Published), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert rule")
	}
	return &created, nil
}

func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*model.Rule, error) {
	row := s.db.QueryRowContext(ctx, selectRuleSQL+` WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: rule %s", id)
	}
	return r, err
}

const selectRuleSQL = `SELECT id, text, category, confidence, source_kind, source_ref,
       provenance_url, provenance_summary, applicable_paths, feedback_score,
       published, created_at, updated_at FROM rules`

func (s *SQLiteStore) ListRules(ctx context.Context, filter RuleFilter) ([]model.Rule, error) {
	query := selectRuleSQL + ` WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.SourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, string(filter.SourceKind))
	}
	if filter.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	if filter.PublishedOnly {
		query += ` AND published = 1`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rules iterate")
}

func (s *SQLiteStore) UpdateRule(ctx context.Context, r *model.Rule) error {
	paths, err := marshalPaths(r.ApplicablePaths)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET text = ?, category = ?, confidence = ?, source_kind = ?,
		        source_ref = ?, provenance_url = ?, provenance_summary = ?,
		        applicable_paths = ?, published = ?, updated_at = ?
		 WHERE id = ?`,
		r.Text, string(r.Category), r.Confidence, string(r.SourceKind),
		r.SourceRef, r.ProvenanceURL, r.ProvenanceSummary, paths,
		boolToInt(r.Published), time.Now().UTC(), r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update rule %s", r.ID)
	}
	return checkRowsAffected(res, "rule", r.ID)
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete rule %s", id)
	}
	return checkRowsAffected(res, "rule", id)
}

func (s *SQLiteStore) VoteRule(ctx context.Context, id string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET feedback_score = feedback_score + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: vote rule %s", id)
	}
	return checkRowsAffected(res, "rule", id)
}

// --- Proposals ---

func (s *SQLiteStore) CreateProposal(ctx context.Context, p *model.Proposal) (*model.Proposal, error) {
	created := *p
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now().UTC()
	if created.Status == "" {
		created.Status = model.ProposalPending
	}
	if created.ContributorCount < 1 {
		created.ContributorCount = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin proposal tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposals (id, text, category, confidence, source_excerpt,
		                        proposed_by, status, contributor_count, reviewed_by,
		                        feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Text, string(created.Category), created.Confidence,
		created.SourceExcerpt, created.ProposedBy, string(created.Status),
		created.ContributorCount, created.ReviewedBy, created.Feedback,
		created.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert proposal")
	}

	// The proposer is contributor #1, so contributor_count always equals
	// the contribution row count.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, proposal_id, contributor_name, text,
		                            original_confidence, source_excerpt,
		                            similarity_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), created.ID, created.ProposedBy, created.Text,
		created.Confidence, created.SourceExcerpt, 1.0, created.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert proposer contribution")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit proposal tx")
	}
	return &created, nil
}

const selectProposalSQL = `SELECT id, text, category, confidence, source_excerpt,
       proposed_by, status, contributor_count, reviewed_by, feedback, created_at
  FROM proposals`

func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.db.QueryRowContext(ctx, selectProposalSQL+` WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: proposal %s", id)
	}
	return p, err
}

func (s *SQLiteStore) ListProposals(ctx context.Context, status model.ProposalStatus) ([]model.Proposal, error) {
	query := selectProposalSQL + ` WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposals")
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list proposals iterate")
}

func (s *SQLiteStore) ReviewProposal(ctx context.Context, id string, status model.ProposalStatus, reviewedBy, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET status = ?, reviewed_by = ?, feedback = ? WHERE id = ? AND status = 'pending'`,
		string(status), reviewedBy, feedback, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: review proposal %s", id)
	}
	return checkRowsAffected(res, "pending proposal", id)
}

func (s *SQLiteStore) AddContribution(ctx context.Context, c *model.Contribution, newConfidence float64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin contribution tx")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, proposal_id, contributor_name, text,
		                            original_confidence, source_excerpt,
		                            similarity_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.ProposalID, c.ContributorName, c.Text, c.OriginalConfidence,
		c.SourceExcerpt, c.SimilarityScore, now,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert contribution")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE proposals SET contributor_count = contributor_count + 1, confidence = ?
		 WHERE id = ? AND status = 'pending'`,
		newConfidence, c.ProposalID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: bump contributor count %s", c.ProposalID)
	}
	if err := checkRowsAffected(res, "pending proposal", c.ProposalID); err != nil {
		return 0, err
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT contributor_count FROM proposals WHERE id = ?`, c.ProposalID,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: read contributor count")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit contribution tx")
	}

	c.ID = id
	c.CreatedAt = now
	return count, nil
}

func (s *SQLiteStore) ListContributions(ctx context.Context, proposalID string) ([]model.Contribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, proposal_id, contributor_name, text, original_confidence,
		        source_excerpt, similarity_score, created_at
		   FROM contributions WHERE proposal_id = ? ORDER BY created_at ASC, id ASC`,
		proposalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contributions")
	}
	defer rows.Close()

	var out []model.Contribution
	for rows.Next() {
		var c model.Contribution
		if err := rows.Scan(&c.ID, &c.ProposalID, &c.ContributorName, &c.Text,
			&c.OriginalConfidence, &c.SourceExcerpt, &c.SimilarityScore, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contribution")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list contributions iterate")
}

// --- Decision trail ---

func (s *SQLiteStore) AddTrailEntry(ctx context.Context, e *model.TrailEntry) error {
	e.ID = uuid.New().String()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_trail (id, rule_id, event_type, description, source_ref, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.RuleID, string(e.EventType), e.Description, e.SourceRef, e.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert trail entry")
}

func (s *SQLiteStore) ListTrail(ctx context.Context, ruleID string) ([]model.TrailEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rule_id, event_type, description, source_ref, timestamp
		   FROM decision_trail WHERE rule_id = ? ORDER BY timestamp ASC, id ASC`,
		ruleID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trail")
	}
	defer rows.Close()

	var out []model.TrailEntry
	for rows.Next() {
		var e model.TrailEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.RuleID, &eventType, &e.Description, &e.SourceRef, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trail entry")
		}
		e.EventType = model.TrailEvent(eventType)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list trail iterate")
}

// --- Extraction runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, repo string) (*model.ExtractionRun, error) {
	run := &model.ExtractionRun{
		ID:        uuid.New().String(),
		Repo:      repo,
		Status:    model.RunPending,
		Stage:     "initializing",
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, repo, status, stage, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Repo, string(run.Status), run.Stage, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, stage string) error {
	var completedAt any
	if status == model.RunCompleted || status == model.RunFailed {
		completedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, stage = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), stage, completedAt, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs
		    SET stage = CASE WHEN ? != '' THEN ? ELSE stage END,
		        tasks_total = tasks_total + ?,
		        tasks_failed = tasks_failed + ?,
		        rules_found = rules_found + ?,
		        prs_analyzed = prs_analyzed + ?
		  WHERE id = ?`,
		progress.Stage, progress.Stage, progress.TasksTotal, progress.TasksFailed,
		progress.RulesFound, progress.PRsAnalyzed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const selectRunSQL = `SELECT id, repo, status, stage, tasks_total, tasks_failed,
       rules_found, prs_analyzed, started_at, completed_at FROM extraction_runs`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx, selectRunSQL+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := selectRunSQL + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Repo != "" {
		query += ` AND repo = ?`
		args = append(args, filter.Repo)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.ExtractionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalPaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal applicable paths")
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRule(row scannable) (*model.Rule, error) {
	var r model.Rule
	var category, sourceKind, pathsJSON string
	var published int

	err := row.Scan(&r.ID, &r.Text, &category, &r.Confidence, &sourceKind,
		&r.SourceRef, &r.ProvenanceURL, &r.ProvenanceSummary, &pathsJSON,
		&r.FeedbackScore, &published, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan rule")
	}

	r.Category = model.Category(category)
	r.SourceKind = model.SourceKind(sourceKind)
	r.Published = published != 0
	if err := json.Unmarshal([]byte(pathsJSON), &r.ApplicablePaths); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal applicable paths")
	}
	if len(r.ApplicablePaths) == 0 {
		r.ApplicablePaths = nil
	}
	return &r, nil
}

func scanProposal(row scannable) (*model.Proposal, error) {
	var p model.Proposal
	var category, status string

	err := row.Scan(&p.ID, &p.Text, &category, &p.Confidence, &p.SourceExcerpt,
		&p.ProposedBy, &status, &p.ContributorCount, &p.ReviewedBy, &p.Feedback,
		&p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan proposal")
	}

	p.Category = model.Category(category)
	p.Status = model.ProposalStatus(status)
	return &p, nil
}

func scanRun(row scannable) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var status string
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Repo, &status, &r.Stage, &r.TasksTotal,
		&r.TasksFailed, &r.RulesFound, &r.PRsAnalyzed, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
