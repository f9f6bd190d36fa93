package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/vedicwatch/internal/persistence"
)

var scanStart = time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestEventsRepo_InsertBatch(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventsRepo(db, 5*time.Second)

	records := []persistence.EventRecord{
		{ScanStart: scanStart, Kind: "conjunction", Key: "conjunction|sun,moon|", Participants: []string{"sun", "moon"}, Instant: scanStart.Add(18 * time.Hour), Value: 0.4},
		{ScanStart: scanStart, Kind: "sign_ingress", Key: "sign_ingress|moon|Aries", Participants: []string{"moon"}, Target: "Aries", Instant: scanStart.Add(30 * time.Hour), Value: 0.1},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO events")
	prep.ExpectExec().
		WithArgs(scanStart, "conjunction", "conjunction|sun,moon|", sqlmock.AnyArg(), "", records[0].Instant, 0.4).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(scanStart, "sign_ingress", "sign_ingress|moon|Aries", sqlmock.AnyArg(), "Aries", records[1].Instant, 0.1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.InsertBatch(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "duplicate of an already journaled key is skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_InsertBatch_Empty(t *testing.T) {
	db, mock := newMock(t)
	n, err := NewEventsRepo(db, time.Second).InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_InsertBatch_RejectsMissingKey(t *testing.T) {
	db, mock := newMock(t)
	_, err := NewEventsRepo(db, time.Second).InsertBatch(context.Background(), []persistence.EventRecord{{Kind: "opposition"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_InsertBatch_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventsRepo(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO events")
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.InsertBatch(context.Background(), []persistence.EventRecord{
		{ScanStart: scanStart, Kind: "opposition", Key: "opposition|sun,moon|", Instant: scanStart},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_ListRange(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventsRepo(db, time.Second)
	tr := persistence.TimeRange{From: scanStart, To: scanStart.Add(48 * time.Hour)}
	instant := scanStart.Add(6 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "scan_start", "kind", "key", "participants", "target", "instant", "value", "created_at"}).
		AddRow(int64(7), scanStart, "lunar_phase", "lunar_phase|moon,sun|amavasya_start", "{moon,sun}", "amavasya_start", instant, 11.9, scanStart)
	mock.ExpectQuery("FROM events").
		WithArgs(tr.From, tr.To, "lunar_phase", defaultListLimit).
		WillReturnRows(rows)

	got, err := repo.ListRange(context.Background(), tr, "lunar_phase", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, []string{"moon", "sun"}, got[0].Participants)
	assert.Equal(t, "amavasya_start", got[0].Target)
	assert.Equal(t, instant, got[0].Instant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepo_CountByKind(t *testing.T) {
	db, mock := newMock(t)
	tr := persistence.TimeRange{From: scanStart, To: scanStart.Add(time.Hour)}

	mock.ExpectQuery("GROUP BY kind").
		WithArgs(tr.From, tr.To).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "count"}).
			AddRow("conjunction", int64(3)).
			AddRow("sign_ingress", int64(5)))

	counts, err := NewEventsRepo(db, time.Second).CountByKind(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"conjunction": 3, "sign_ingress": 5}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashaAnchorRepo_Upsert(t *testing.T) {
	db, mock := newMock(t)
	rec := persistence.DashaAnchorRecord{
		Instant:       scanStart,
		MoonLongitude: 130,
		Nakshatra:     "Magha",
		Lord:          "ketu",
		NakStartJD:    2460408.73,
	}

	mock.ExpectQuery("INSERT INTO dasha_anchors").
		WithArgs(rec.Instant, rec.MoonLongitude, rec.Nakshatra, rec.Lord, rec.NakStartJD).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	require.NoError(t, NewDashaAnchorRepo(db, time.Second).Upsert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashaAnchorRepo_UpsertRejectsEmptyLord(t *testing.T) {
	db, _ := newMock(t)
	err := NewDashaAnchorRepo(db, time.Second).Upsert(context.Background(), persistence.DashaAnchorRecord{Nakshatra: "Magha"})
	assert.Error(t, err)
}

func TestDashaAnchorRepo_GetByInstant(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDashaAnchorRepo(db, time.Second)
	cols := []string{"instant", "moon_longitude", "nakshatra", "lord", "nak_start_jd", "created_at"}

	mock.ExpectQuery("FROM dasha_anchors").
		WithArgs(scanStart).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(scanStart, 130.0, "Magha", "ketu", 2460408.73, scanStart))

	got, err := repo.GetByInstant(context.Background(), scanStart)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ketu", got.Lord)
	assert.Equal(t, 2460408.73, got.NakStartJD)

	mock.ExpectQuery("FROM dasha_anchors").
		WithArgs(scanStart.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(cols))

	missing, err := repo.GetByInstant(context.Background(), scanStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashaAnchorRepo_Latest(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("ORDER BY instant DESC").
		WillReturnError(errors.New("relation does not exist"))

	_, err := NewDashaAnchorRepo(db, time.Second).Latest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latest")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS events_instant_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS events_kind_instant_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS dasha_anchors").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
