package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresCreateRule(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO rules`).
		WithArgs(pgxmock.AnyArg(), "Prefer table-driven tests", "testing", 0.85,
			"pr", "pr-7", "", "", `["internal/"]`, 0, true,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.CreateRule(context.Background(), &model.Rule{
		Text:            "Prefer table-driven tests",
		Category:        model.CategoryTesting,
		Confidence:      0.85,
		SourceKind:      model.SourcePR,
		SourceRef:       "pr-7",
		ApplicablePaths: []string{"internal/"},
		Published:       true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRule(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "text", "category", "confidence", "source_kind", "source_ref",
		"provenance_url", "provenance_summary", "applicable_paths",
		"feedback_score", "published", "created_at", "updated_at",
	}).AddRow("rule-1", "Never log secrets", "security", 0.9, "ci_fix", "run-3",
		"https://example.com", "leaked token fixed in run-3", []byte(`[]`),
		2, true, now, now)

	mock.ExpectQuery(`SELECT .+ FROM rules WHERE id = \$1`).
		WithArgs("rule-1").
		WillReturnRows(rows)

	got, err := s.GetRule(context.Background(), "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "Never log secrets", got.Text)
	assert.Equal(t, model.SourceCIFix, got.SourceKind)
	assert.Equal(t, 2, got.FeedbackScore)
	assert.Nil(t, got.ApplicablePaths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRuleNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM rules WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := s.GetRule(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgresVoteRule(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE rules SET feedback_score = feedback_score \+ \$1`).
		WithArgs(1, pgxmock.AnyArg(), "rule-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.VoteRule(context.Background(), "rule-1", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReviewProposalAlreadyDecided(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE proposals SET status = \$1`).
		WithArgs("approved", "maintainer", "", "prop-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ReviewProposal(context.Background(), "prop-1", model.ProposalApproved, "maintainer", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending proposal not found")
}

func TestPostgresAddContribution(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO contributions`).
		WithArgs(pgxmock.AnyArg(), "prop-1", "acme/gadgets", "Pin CI tool versions",
			0.75, "", 0.9, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`UPDATE proposals SET contributor_count = contributor_count \+ 1`).
		WithArgs(0.88, "prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"contributor_count"}).AddRow(3))
	mock.ExpectCommit()

	count, err := s.AddContribution(context.Background(), &model.Contribution{
		ProposalID:         "prop-1",
		ContributorName:    "acme/gadgets",
		Text:               "Pin CI tool versions",
		OriginalConfidence: 0.75,
		SimilarityScore:    0.9,
	}, 0.88)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusCompleted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE extraction_runs SET status = \$1`).
		WithArgs("completed", "done", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateRunStatus(context.Background(), "run-1", model.RunCompleted, "done"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
