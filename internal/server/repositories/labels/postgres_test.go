package labels

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

const (
	insertQ   = `(?s)^\s*INSERT\s+INTO\s+labels\b.*RETURNING\s+id\s*$`
	getQ      = `(?s)^\s*SELECT\s+.*FROM\s+labels\s+l\s+WHERE\s+l\.id\s*=\s*\$1\s+AND\s+l\.team_id\s*=\s*\$2\s+AND\s+l\.is_active\s*$`
	listQ     = `(?s)^\s*SELECT\s+.*FROM\s+labels\s+l\s+WHERE\s+l\.team_id\s*=\s*\$1\s+AND\s+l\.is_active\s+ORDER\s+BY.*$`
	cardQ     = `(?s)^\s*SELECT\s+.*FROM\s+card_labels\s+cl\s+JOIN\s+labels\s+l\b.*WHERE\s+cl\.card_id\s*=\s*\$1\b.*$`
	teamCardQ = `(?s)^\s*SELECT\s+.*cl\.card_id\s+FROM\s+card_labels\s+cl\b.*JOIN\s+cards\s+c\b.*WHERE\s+c\.team_id\s*=\s*\$1\b.*$`
	updateQ   = `(?s)^\s*UPDATE\s+labels\s+SET\s+name\s*=\s*\$3\b.*WHERE\s+id\s*=\s*\$1\s+AND\s+team_id\s*=\s*\$2\s+AND\s+is_active\s*$`
	inUseQ    = `(?s)^\s*SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+card_labels\s+WHERE\s+label_id\s*=\s*\$1\)\s*$`
	softDelQ  = `(?s)^\s*UPDATE\s+labels\s+SET\s+is_active\s*=\s*FALSE\b.*WHERE\s+id\s*=\s*\$1\s+AND\s+is_active\s*$`
	deleteQ   = `(?s)^\s*DELETE\s+FROM\s+labels\s+WHERE\s+id\s*=\s*\$1\s*$`
	attachQ   = `(?s)^\s*INSERT\s+INTO\s+card_labels\s*\(card_id,\s*label_id\)\s*VALUES\s*\(\$1,\s*\$2\)\s*ON\s+CONFLICT\b.*DO\s+NOTHING\s*$`
	detachQ   = `(?s)^\s*DELETE\s+FROM\s+card_labels\s+WHERE\s+card_id\s*=\s*\$1\s+AND\s+label_id\s*=\s*\$2\s*$`
)

var (
	created   = time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC)
	labelCols = []string{"id", "team_id", "name", "normalized_name", "color_hex", "created_by", "created_at", "updated_by", "updated_at", "is_active"}
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "ok"},
		{name: "duplicate name", err: &pgconn.PgError{Code: "23505"}, wantErr: common.ErrorAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newRepoWithMock(t)

			exp := mock.ExpectQuery(insertQ).WithArgs(int64(2), "Bug Fix", "bug_fix", "#AABBCC", int64(1), created)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
			}

			got, err := repo.Create(context.Background(), &models.Label{
				TeamID: 2, Name: "Bug Fix", NormalizedName: "bug_fix", ColorHex: "#AABBCC", CreatedBy: 1, CreatedAt: created,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(9), got.ID)
			assert.True(t, got.IsActive)
		})
	}
}

func TestGet(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(getQ).WithArgs(int64(9), int64(2)).
		WillReturnRows(sqlmock.NewRows(labelCols).AddRow(int64(9), int64(2), "bug", "bug", "#FF0000", int64(1), created, nil, nil, true))

	got, err := repo.Get(context.Background(), 2, 9)
	require.NoError(t, err)
	assert.Equal(t, "#FF0000", got.ColorHex)

	mock.ExpectQuery(getQ).WithArgs(int64(9), int64(3)).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), 3, 9)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByTeamAndCard(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows(labelCols).
			AddRow(int64(9), int64(2), "bug", "bug", "#FF0000", int64(1), created, nil, nil, true).
			AddRow(int64(4), int64(2), "ui", "ui", "#00FF00", int64(1), created, int64(1), created, true)
	}
	mock.ExpectQuery(listQ).WithArgs(int64(2)).WillReturnRows(rows())
	mock.ExpectQuery(cardQ).WithArgs(int64(5)).WillReturnRows(rows())

	byTeam, err := repo.ListByTeam(context.Background(), 2)
	require.NoError(t, err)
	byCard, err := repo.ListForCard(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, byTeam, byCard)
	require.Len(t, byTeam, 2)
	assert.Equal(t, "ui", byTeam[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForTeamCards(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(teamCardQ).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(append(labelCols, "card_id")).
			AddRow(int64(9), int64(2), "bug", "bug", "#FF0000", int64(1), created, nil, nil, true, int64(5)).
			AddRow(int64(9), int64(2), "bug", "bug", "#FF0000", int64(1), created, nil, nil, true, int64(6)))

	got, err := repo.ListForTeamCards(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].CardID)
	assert.Equal(t, int64(6), got[1].CardID)
	assert.Equal(t, "bug", got[1].Label.Name)
}

func TestList_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(listQ).WillReturnError(errors.New("db err"))

	_, err := repo.ListByTeam(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdate(t *testing.T) {
	by := int64(1)
	label := &models.Label{ID: 9, TeamID: 2, Name: "Bug", NormalizedName: "bug", ColorHex: "#FF0000", UpdatedBy: &by, UpdatedAt: &created}

	tests := []struct {
		name    string
		rows    int64
		err     error
		wantErr error
	}{
		{name: "ok", rows: 1},
		{name: "gone", rows: 0, wantErr: common.ErrorNotFound},
		{name: "name taken", err: &pgconn.PgError{Code: "23505"}, wantErr: common.ErrorAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newRepoWithMock(t)

			exp := mock.ExpectExec(updateQ).WithArgs(int64(9), int64(2), "Bug", "bug", "#FF0000", &by, &created)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.rows))
			}

			err := repo.Update(context.Background(), label)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestInUse(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(inUseQ).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	used, err := repo.InUse(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, used)

	mock.ExpectQuery(inUseQ).WithArgs(int64(9)).WillReturnError(errors.New("db err"))
	_, err = repo.InUse(context.Background(), 9)
	require.Error(t, err)
}

func TestDeletes(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(softDelQ).WithArgs(int64(9), int64(1), created).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SoftDelete(context.Background(), 9, 1, created))
	require.NoError(t, repo.Delete(context.Background(), 8))
	assert.ErrorIs(t, repo.Delete(context.Background(), 7), common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachDetach(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(attachQ).WithArgs(int64(5), int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(detachQ).WithArgs(int64(5), int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(detachQ).WithArgs(int64(5), int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Attach(context.Background(), 5, 9), "already linked is not an error")
	require.NoError(t, repo.Detach(context.Background(), 5, 9))
	assert.ErrorIs(t, repo.Detach(context.Background(), 5, 9), common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
