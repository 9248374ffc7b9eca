package analyses

import (
	"context"
	"time"
)

// Repo persists fact-check jobs. Only the owner's jobs are listed.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateStatusResultAndError(ctx context.Context, analysisID, status string, result *AnalysisResult, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	// FailStale fails jobs that entered processing before cutoff and returns
	// how many were changed.
	FailStale(ctx context.Context, cutoff time.Time, errorCode, errorMessage string) (int64, error)
}
