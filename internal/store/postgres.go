package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tacit-cli/internal/db"
	"github.com/sells-group/tacit-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_rule":  `INSERT INTO rules (id, text, category, confidence, source_kind, source_ref, provenance_url, provenance_summary, applicable_paths, feedback_score, published, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"insert_trail": `INSERT INTO decision_trail (id, rule_id, event_type, description, source_ref, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_rule":     `SELECT id, text, category, confidence, source_kind, source_ref, provenance_url, provenance_summary, applicable_paths, feedback_score, published, created_at, updated_at FROM rules WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rules (
	id                 TEXT PRIMARY KEY,
	text               TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT 'general',
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	source_kind        TEXT NOT NULL DEFAULT 'pr',
	source_ref         TEXT NOT NULL DEFAULT '',
	provenance_url     TEXT NOT NULL DEFAULT '',
	provenance_summary TEXT NOT NULL DEFAULT '',
	applicable_paths   JSONB NOT NULL DEFAULT '[]',
	feedback_score     INTEGER NOT NULL DEFAULT 0,
	published          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS proposals (
	id                TEXT PRIMARY KEY,
	text              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT 'general',
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	source_excerpt    TEXT NOT NULL DEFAULT '',
	proposed_by       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	contributor_count INTEGER NOT NULL DEFAULT 1,
	reviewed_by       TEXT NOT NULL DEFAULT '',
	feedback          TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contributions (
	id                  TEXT PRIMARY KEY,
	proposal_id         TEXT NOT NULL REFERENCES proposals(id),
	contributor_name    TEXT NOT NULL,
	text                TEXT NOT NULL,
	original_confidence DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	source_excerpt      TEXT NOT NULL DEFAULT '',
	similarity_score    DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_trail (
	id          TEXT PRIMARY KEY,
	rule_id     TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	source_ref  TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(category);
CREATE INDEX IF NOT EXISTS idx_rules_source_kind ON rules(source_kind);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);
CREATE INDEX IF NOT EXISTS idx_contributions_proposal_id ON contributions(proposal_id);
CREATE INDEX IF NOT EXISTS idx_decision_trail_rule_id ON decision_trail(rule_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_repo ON extraction_runs(repo);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Rules ---

func (s *PostgresStore) CreateRule(ctx context.Context, r *model.Rule) (*model.Rule, error) {
	created := *r
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	paths, err := marshalPaths(created.ApplicablePaths)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rules (id, text, category, confidence, source_kind, source_ref,
		                    provenance_url, provenance_summary, applicable_paths,
		                    feedback_score, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		created.ID, created.Text, string(created.Category), created.Confidence,
		string(created.SourceKind), created.SourceRef, created.ProvenanceURL,
		created.ProvenanceSummary, paths, created.FeedbackScore, created.Published,
		now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert rule")
	}
	return &created, nil
}

const pgSelectRuleSQL = `SELECT id, text, category, confidence, source_kind, source_ref,
       provenance_url, provenance_summary, applicable_paths, feedback_score,
       published, created_at, updated_at FROM rules`

func (s *PostgresStore) GetRule(ctx context.Context, id string) (*model.Rule, error) {
	row := s.pool.QueryRow(ctx, pgSelectRuleSQL+` WHERE id = $1`, id)
	r, err := scanPGRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: rule %s", id)
	}
	return r, err
}

func (s *PostgresStore) ListRules(ctx context.Context, filter RuleFilter) ([]model.Rule, error) {
	query := pgSelectRuleSQL + ` WHERE 1=1`
	var args []any

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += ` AND category = ` + placeholder(len(args))
	}
	if filter.SourceKind != "" {
		args = append(args, string(filter.SourceKind))
		query += ` AND source_kind = ` + placeholder(len(args))
	}
	if filter.MinConfidence > 0 {
		args = append(args, filter.MinConfidence)
		query += ` AND confidence >= ` + placeholder(len(args))
	}
	if filter.PublishedOnly {
		query += ` AND published`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT ` + placeholder(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += ` OFFSET ` + placeholder(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		r, err := scanPGRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rules iterate")
}

func (s *PostgresStore) UpdateRule(ctx context.Context, r *model.Rule) error {
	paths, err := marshalPaths(r.ApplicablePaths)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rules SET text = $1, category = $2, confidence = $3, source_kind = $4,
		        source_ref = $5, provenance_url = $6, provenance_summary = $7,
		        applicable_paths = $8, published = $9, updated_at = $10
		 WHERE id = $11`,
		r.Text, string(r.Category), r.Confidence, string(r.SourceKind),
		r.SourceRef, r.ProvenanceURL, r.ProvenanceSummary, paths, r.Published,
		time.Now().UTC(), r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update rule %s", r.ID)
	}
	return checkTagAffected(tag.RowsAffected(), "rule", r.ID)
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete rule %s", id)
	}
	return checkTagAffected(tag.RowsAffected(), "rule", id)
}

func (s *PostgresStore) VoteRule(ctx context.Context, id string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rules SET feedback_score = feedback_score + $1, updated_at = $2 WHERE id = $3`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: vote rule %s", id)
	}
	return checkTagAffected(tag.RowsAffected(), "rule", id)
}

// --- Proposals ---

func (s *PostgresStore) CreateProposal(ctx context.Context, p *model.Proposal) (*model.Proposal, error) {
	created := *p
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now().UTC()
	if created.Status == "" {
		created.Status = model.ProposalPending
	}
	if created.ContributorCount < 1 {
		created.ContributorCount = 1
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin proposal tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO proposals (id, text, category, confidence, source_excerpt,
		                        proposed_by, status, contributor_count, reviewed_by,
		                        feedback, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		created.ID, created.Text, string(created.Category), created.Confidence,
		created.SourceExcerpt, created.ProposedBy, string(created.Status),
		created.ContributorCount, created.ReviewedBy, created.Feedback,
		created.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert proposal")
	}

	// The proposer is contributor #1, so contributor_count always equals
	// the contribution row count.
	_, err = tx.Exec(ctx,
		`INSERT INTO contributions (id, proposal_id, contributor_name, text,
		                            original_confidence, source_excerpt,
		                            similarity_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), created.ID, created.ProposedBy, created.Text,
		created.Confidence, created.SourceExcerpt, 1.0, created.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert proposer contribution")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit proposal tx")
	}
	return &created, nil
}

const pgSelectProposalSQL = `SELECT id, text, category, confidence, source_excerpt,
       proposed_by, status, contributor_count, reviewed_by, feedback, created_at
  FROM proposals`

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.pool.QueryRow(ctx, pgSelectProposalSQL+` WHERE id = $1`, id)
	p, err := scanPGProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: proposal %s", id)
	}
	return p, err
}

func (s *PostgresStore) ListProposals(ctx context.Context, status model.ProposalStatus) ([]model.Proposal, error) {
	query := pgSelectProposalSQL
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals")
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanPGProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list proposals iterate")
}

func (s *PostgresStore) ReviewProposal(ctx context.Context, id string, status model.ProposalStatus, reviewedBy, feedback string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET status = $1, reviewed_by = $2, feedback = $3 WHERE id = $4 AND status = 'pending'`,
		string(status), reviewedBy, feedback, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: review proposal %s", id)
	}
	return checkTagAffected(tag.RowsAffected(), "pending proposal", id)
}

func (s *PostgresStore) AddContribution(ctx context.Context, c *model.Contribution, newConfidence float64) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin contribution tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.Exec(ctx,
		`INSERT INTO contributions (id, proposal_id, contributor_name, text,
		                            original_confidence, source_excerpt,
		                            similarity_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, c.ProposalID, c.ContributorName, c.Text, c.OriginalConfidence,
		c.SourceExcerpt, c.SimilarityScore, now,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert contribution")
	}

	var count int
	err = tx.QueryRow(ctx,
		`UPDATE proposals SET contributor_count = contributor_count + 1, confidence = $1
		 WHERE id = $2 AND status = 'pending'
		 RETURNING contributor_count`,
		newConfidence, c.ProposalID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Errorf("pending proposal not found: %s", c.ProposalID)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: bump contributor count %s", c.ProposalID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit contribution tx")
	}

	c.ID = id
	c.CreatedAt = now
	return count, nil
}

func (s *PostgresStore) ListContributions(ctx context.Context, proposalID string) ([]model.Contribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, proposal_id, contributor_name, text, original_confidence,
		        source_excerpt, similarity_score, created_at
		   FROM contributions WHERE proposal_id = $1 ORDER BY created_at ASC, id ASC`,
		proposalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contributions")
	}
	defer rows.Close()

	var out []model.Contribution
	for rows.Next() {
		var c model.Contribution
		if err := rows.Scan(&c.ID, &c.ProposalID, &c.ContributorName, &c.Text,
			&c.OriginalConfidence, &c.SourceExcerpt, &c.SimilarityScore, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contribution")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list contributions iterate")
}

// --- Decision trail ---

func (s *PostgresStore) AddTrailEntry(ctx context.Context, e *model.TrailEntry) error {
	e.ID = uuid.New().String()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO decision_trail (id, rule_id, event_type, description, source_ref, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.RuleID, string(e.EventType), e.Description, e.SourceRef, e.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert trail entry")
}

func (s *PostgresStore) ListTrail(ctx context.Context, ruleID string) ([]model.TrailEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rule_id, event_type, description, source_ref, timestamp
		   FROM decision_trail WHERE rule_id = $1 ORDER BY timestamp ASC, id ASC`,
		ruleID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trail")
	}
	defer rows.Close()

	var out []model.TrailEntry
	for rows.Next() {
		var e model.TrailEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.RuleID, &eventType, &e.Description, &e.SourceRef, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trail entry")
		}
		e.EventType = model.TrailEvent(eventType)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list trail iterate")
}

// --- Extraction runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, repo string) (*model.ExtractionRun, error) {
	run := &model.ExtractionRun{
		ID:        uuid.New().String(),
		Repo:      repo,
		Status:    model.RunPending,
		Stage:     "initializing",
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, repo, status, stage, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Repo, string(run.Status), run.Stage, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, stage string) error {
	var completedAt any
	if status == model.RunCompleted || status == model.RunFailed {
		completedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, stage = $2, completed_at = COALESCE($3, completed_at) WHERE id = $4`,
		string(status), stage, completedAt, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return checkTagAffected(tag.RowsAffected(), "run", runID)
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs
		    SET stage = CASE WHEN $1 != '' THEN $1 ELSE stage END,
		        tasks_total = tasks_total + $2,
		        tasks_failed = tasks_failed + $3,
		        rules_found = rules_found + $4,
		        prs_analyzed = prs_analyzed + $5
		  WHERE id = $6`,
		progress.Stage, progress.TasksTotal, progress.TasksFailed,
		progress.RulesFound, progress.PRsAnalyzed, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run progress %s", runID)
	}
	return checkTagAffected(tag.RowsAffected(), "run", runID)
}

const pgSelectRunSQL = `SELECT id, repo, status, stage, tasks_total, tasks_failed,
       rules_found, prs_analyzed, started_at, completed_at FROM extraction_runs`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx, pgSelectRunSQL+` WHERE id = $1`, runID)
	r, err := scanPGRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := pgSelectRunSQL + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.Repo != "" {
		args = append(args, filter.Repo)
		query += ` AND repo = ` + placeholder(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.ExtractionRun
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- helpers ---

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func checkTagAffected(n int64, entity, id string) error {
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanPGRule(row pgx.Row) (*model.Rule, error) {
	var r model.Rule
	var category, sourceKind string
	var pathsJSON []byte

	err := row.Scan(&r.ID, &r.Text, &category, &r.Confidence, &sourceKind,
		&r.SourceRef, &r.ProvenanceURL, &r.ProvenanceSummary, &pathsJSON,
		&r.FeedbackScore, &r.Published, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan rule")
	}

	r.Category = model.Category(category)
	r.SourceKind = model.SourceKind(sourceKind)
	if err := json.Unmarshal(pathsJSON, &r.ApplicablePaths); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal applicable paths")
	}
	if len(r.ApplicablePaths) == 0 {
		r.ApplicablePaths = nil
	}
	return &r, nil
}

func scanPGProposal(row pgx.Row) (*model.Proposal, error) {
	var p model.Proposal
	var category, status string

	err := row.Scan(&p.ID, &p.Text, &category, &p.Confidence, &p.SourceExcerpt,
		&p.ProposedBy, &status, &p.ContributorCount, &p.ReviewedBy, &p.Feedback,
		&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan proposal")
	}

	p.Category = model.Category(category)
	p.Status = model.ProposalStatus(status)
	return &p, nil
}

func scanPGRun(row pgx.Row) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var status string
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.Repo, &status, &r.Stage, &r.TasksTotal,
		&r.TasksFailed, &r.RulesFound, &r.PRsAnalyzed, &r.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.Status = model.RunStatus(status)
	r.CompletedAt = completedAt
	return &r, nil
}
