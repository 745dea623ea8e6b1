package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdocs/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestReserveVersionNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)
	docID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET version_seq = version_seq + 1")).
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"version_seq"}).AddRow(4))

	next, err := repo.ReserveVersionNumber(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 4, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveVersionNumberUnknownDocument(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SET version_seq = version_seq + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"version_seq"}))

	_, err := repo.ReserveVersionNumber(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetDocumentNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetLatestVersionToNull(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)
	docID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SET latest_version_id = $1")).
		WithArgs(nil, docID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetLatestVersion(context.Background(), docID, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitVersionRepointsLatestInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)
	versionID, docID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_versions SET status = 'committed'")).
		WithArgs(versionID, docID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET latest_version_id = (")).
		WithArgs(docID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Commit(context.Background(), versionID, docID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitMissingVersionRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_versions SET status = 'committed'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Commit(context.Background(), uuid.New(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCommittedWithoutVersions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version_number DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	v, err := repo.LatestCommitted(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListStalePending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVersionRepository(db)
	before := time.Now().Add(-time.Hour)
	id, docID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "version_number", "storage_path", "size_bytes", "mime_type",
		"uploaded_by", "uploaded_at", "description", "is_restored", "restored_from", "status",
	}).AddRow(id.String(), docID.String(), 3, "deals/x/v3.pdf", 10, "application/pdf",
		"user-1", before.Add(-time.Minute), nil, false, nil, "pending")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'pending' AND uploaded_at < $1")).
		WithArgs(before, 50).
		WillReturnRows(rows)

	versions, err := repo.ListStalePending(context.Background(), before, 50)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, id, versions[0].ID)
	assert.Equal(t, domain.VersionStatusPending, versions[0].Status)
	assert.Nil(t, versions[0].Description)
}

func TestGetParticipantNotMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDealRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM deal_participants")).
		WillReturnRows(sqlmock.NewRows([]string{"deal_id"}))

	p, err := repo.GetParticipant(context.Background(), uuid.New(), "stranger")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRevokeUnknownShareLink(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareLinkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET revoked = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListTagsWithoutVersionsSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTagRepository(db)

	tags, err := repo.ListTags(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}
