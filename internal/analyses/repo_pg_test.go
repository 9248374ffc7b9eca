package analyses

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/verify"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	analysis := Analysis{
		ID:        "11111111-1111-1111-1111-111111111111",
		UserID:    "user-1",
		ImageKey:  "uploads/abc_shot.png",
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			analysis.UserID,
			analysis.ImageKey,
			"",
			StatusQueued,
			nil, // no result yet
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	stored := AnalysisResult{
		JobID:               "job-1",
		AggregateTrustScore: 67,
		TrustLabel:          "Unverified / Mixed",
		Claims: []Claim{{
			ID:            1,
			Text:          "Vaccines cause autism",
			Verdict:       verify.LikelyMisleading,
			TrustScore:    67,
			ModelVerdicts: []verify.ModelVerdict{},
		}},
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "image_key", "image_url", "status", "result",
		"error_code", "error_message", "started_at", "completed_at", "created_at", "updated_at",
	}).AddRow("job-1", "user-1", "k", nil, StatusCompleted, string(payload), nil, nil, now, now, now, now)
	mock.ExpectQuery("SELECT (.+) FROM analyses").WithArgs("job-1").WillReturnRows(rows)

	got, err := (&PGRepo{DB: db}).GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	require.Equal(t, 67, got.Result.AggregateTrustScore)
	require.Equal(t, verify.LikelyMisleading, got.Result.Claims[0].Verdict)
	require.NotNil(t, got.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoUpdateMissingRowIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE analyses").WillReturnResult(sqlmock.NewResult(0, 0))
	code := ErrorCodeOCRFailed
	err = (&PGRepo{DB: db}).UpdateStatusResultAndError(context.Background(), "missing", StatusFailed, nil, &code, nil, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoFailStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE analyses").
		WithArgs(cutoff, ErrorCodeJobTimeout, "interrupted").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := (&PGRepo{DB: db}).FailStale(context.Background(), cutoff, ErrorCodeJobTimeout, "interrupted")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
