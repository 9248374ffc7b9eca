package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"factcheck-backend/internal/ocr"
	"factcheck-backend/internal/queue"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/storage/object"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/trust"
)

const maxImageBytes = 10 << 20

// Service contains business logic for analyses.
type Service struct {
	Repo     Repo
	Store    object.ObjectStore
	Pipeline *Pipeline
	// Queue hands async jobs to the worker. When nil, jobs run in-process.
	Queue queue.Client
}

// Request names the screenshot to analyze. Exactly one of Image, ImageKey or
// ImageURL is used, in that order.
type Request struct {
	UserID   string
	Image    []byte
	MIME     string
	FileName string
	ImageKey string
	ImageURL string
}

func (r Request) empty() bool {
	return len(r.Image) == 0 && strings.TrimSpace(r.ImageKey) == "" && strings.TrimSpace(r.ImageURL) == ""
}

// Analyze runs a job synchronously and returns its result. The job is
// recorded when a repository is configured so chat can refer to it later.
func (s *Service) Analyze(ctx context.Context, req Request) (AnalysisResult, error) {
	if req.empty() {
		return AnalysisResult{}, ErrNoImage
	}
	if len(req.Image) > 0 && s.Store != nil {
		if key, err := s.saveImage(ctx, req); err == nil {
			req.ImageKey = key
		} else {
			telemetry.Warn("analysis.image_store", map[string]any{
				"request_id": RequestIDFromContext(ctx),
				"error":      sanitizeError(err),
			})
		}
	}
	analysis := s.newAnalysis(req)
	if s.Repo != nil {
		if err := s.Repo.Create(ctx, analysis); err != nil {
			return AnalysisResult{}, fmt.Errorf("storage: create analysis: %w", err)
		}
	}

	img, err := s.resolveImage(ctx, req)
	if err != nil {
		s.failAnalysis(ctx, analysis, err, nil)
		return AnalysisResult{}, err
	}
	return s.run(ctx, analysis, img)
}

// Submit records a queued job and hands it to the queue, or to a background
// goroutine when no queue is configured. Raw image bytes are stored first so
// the worker can load them by key.
func (s *Service) Submit(ctx context.Context, req Request) (Analysis, error) {
	if req.empty() {
		return Analysis{}, ErrNoImage
	}
	if s.Repo == nil {
		return Analysis{}, fmt.Errorf("%w: no analysis repository", ErrNotConfigured)
	}
	if len(req.Image) > 0 {
		if s.Store == nil {
			return Analysis{}, fmt.Errorf("%w: no object store", ErrNotConfigured)
		}
		key, err := s.saveImage(ctx, req)
		if err != nil {
			return Analysis{}, err
		}
		req.ImageKey = key
		req.Image = nil
	}

	analysis := s.newAnalysis(req)
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, fmt.Errorf("storage: create analysis: %w", err)
	}

	if s.Queue != nil {
		msg := queue.NewMessage(analysis.ID, RequestIDFromContext(ctx), time.Now())
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.failAnalysis(ctx, analysis, fmt.Errorf("storage: enqueue: %w", err), nil)
			return Analysis{}, fmt.Errorf("enqueue analysis: %w", err)
		}
		telemetry.Info("analysis.enqueued", map[string]any{
			"request_id":  msg.RequestID,
			"analysis_id": analysis.ID,
			"user_id":     analysis.UserID,
		})
		return analysis, nil
	}

	go s.completeAsync(detached(ctx), analysis.ID)
	return analysis, nil
}

// ProcessAnalysis runs a queued job. Job failures are recorded on the job and
// not returned; only errors worth a redelivery are returned.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	if s.Repo == nil {
		return fmt.Errorf("%w: no analysis repository", ErrNotConfigured)
	}
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}
	switch analysis.Status {
	case StatusCompleted, StatusFailed:
		telemetry.Info("analysis.skip", map[string]any{
			"request_id":  RequestIDFromContext(ctx),
			"analysis_id": analysisID,
			"status":      analysis.Status,
		})
		return nil
	}

	img, err := s.resolveImage(ctx, Request{ImageKey: analysis.ImageKey, ImageURL: analysis.ImageURL})
	if err != nil {
		s.failAnalysis(ctx, analysis, err, nil)
		return nil
	}
	if _, err := s.run(ctx, analysis, img); err != nil {
		code, retryable := classifyFailure(err)
		if retryable && code == ErrorCodeStorage {
			return err
		}
	}
	return nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	if s.Repo == nil {
		return Analysis{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	if s.Repo == nil {
		return []Analysis{}, nil
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// FailStale fails jobs left in processing by a process that died mid-run. A
// job older than twice the pipeline deadline cannot still be running.
func (s *Service) FailStale(ctx context.Context, now time.Time) (int64, error) {
	if s.Repo == nil {
		return 0, nil
	}
	timeout := defaultJobTimeout
	if s.Pipeline != nil && s.Pipeline.Timeout > 0 {
		timeout = s.Pipeline.Timeout
	}
	n, err := s.Repo.FailStale(ctx, now.Add(-2*timeout), ErrorCodeJobTimeout, "analysis was interrupted before it finished")
	if err != nil {
		return 0, fmt.Errorf("storage: fail stale analyses: %w", err)
	}
	if n > 0 {
		telemetry.Warn("analysis.stale", map[string]any{
			"failed":            n,
			"status_transition": "processing->failed",
		})
		for i := int64(0); i < n; i++ {
			metrics.ObserveAnalysis("timeout", -1)
		}
	}
	return n, nil
}

func (s *Service) saveImage(ctx context.Context, req Request) (string, error) {
	name := req.FileName
	if name == "" {
		name = "screenshot" + extensionFor(req.MIME)
	}
	key, _, _, err := s.Store.Save(ctx, req.UserID, name, bytes.NewReader(req.Image))
	if err != nil {
		return "", fmt.Errorf("storage: save image: %w", err)
	}
	return key, nil
}

func (s *Service) newAnalysis(req Request) Analysis {
	now := time.Now().UTC()
	return Analysis{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ImageKey:  strings.TrimSpace(req.ImageKey),
		ImageURL:  strings.TrimSpace(req.ImageURL),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) completeAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, Analysis{ID: analysisID}, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	if err := s.ProcessAnalysis(ctx, analysisID); err != nil {
		telemetry.Error("analysis.async", map[string]any{
			"request_id":  RequestIDFromContext(ctx),
			"analysis_id": analysisID,
			"error":       sanitizeError(err),
		})
	}
}

// run drives one recorded job through the pipeline and stores the outcome.
func (s *Service) run(ctx context.Context, analysis Analysis, img ocr.Image) (AnalysisResult, error) {
	if s.Pipeline == nil {
		err := fmt.Errorf("%w: no pipeline", ErrNotConfigured)
		s.failAnalysis(ctx, analysis, err, nil)
		return AnalysisResult{}, err
	}

	startedAt := time.Now().UTC()
	if s.Repo != nil {
		if err := s.Repo.UpdateStatusResultAndError(ctx, analysis.ID, StatusProcessing, nil, nil, nil, &startedAt, nil); err != nil {
			// left queued so a redelivery can pick it up again
			return AnalysisResult{}, fmt.Errorf("storage: set processing failed: %w", err)
		}
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	ref := analysis.ImageURL
	if ref == "" {
		ref = analysis.ImageKey
	}
	result, err := s.Pipeline.Run(ctx, Job{ID: analysis.ID, Image: img, ImageRef: ref})
	if err != nil {
		s.failAnalysis(ctx, analysis, err, &startedAt)
		return AnalysisResult{}, err
	}

	completedAt := time.Now().UTC()
	if s.Repo != nil {
		if err := s.Repo.UpdateStatusResultAndError(ctx, analysis.ID, StatusCompleted, &result, nil, nil, nil, &completedAt); err != nil {
			// the caller still gets the result; only the stored copy is missing
			telemetry.Error("analysis.store", map[string]any{
				"request_id":  RequestIDFromContext(ctx),
				"analysis_id": analysis.ID,
				"error":       sanitizeError(err),
			})
		}
	}

	outcome := "completed"
	if result.TrustLabel == trust.LabelUnableToVerify {
		outcome = "unable_to_verify"
	}
	metrics.ObserveAnalysis(outcome, completedAt.Sub(startedAt).Seconds())
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"trust_score":       result.AggregateTrustScore,
		"claims":            len(result.Claims),
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return result, nil
}

func (s *Service) failAnalysis(ctx context.Context, analysis Analysis, err error, startedAt *time.Time) {
	code, _ := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if s.Repo != nil {
		if updateErr := s.Repo.UpdateStatusResultAndError(context.Background(), analysis.ID, StatusFailed, nil, &code, &msg, nil, &completedAt); updateErr != nil {
			telemetry.Error("analysis.fail_update", map[string]any{
				"analysis_id": analysis.ID,
				"error":       updateErr.Error(),
				"cause":       msg,
			})
		}
	}
	outcome := "failed"
	if code == ErrorCodeJobTimeout {
		outcome = "timeout"
	}
	seconds := -1.0
	if startedAt != nil {
		seconds = completedAt.Sub(*startedAt).Seconds()
	}
	metrics.ObserveAnalysis(outcome, seconds)
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"analysis_id":       analysis.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

// resolveImage turns a request into an OCR input: raw bytes, bytes loaded
// from the object store, or a URL passed through to the vision model.
func (s *Service) resolveImage(ctx context.Context, req Request) (ocr.Image, error) {
	if len(req.Image) > 0 {
		return ocr.Image{Data: req.Image, MIME: req.MIME}, nil
	}
	if key := strings.TrimSpace(req.ImageKey); key != "" {
		if s.Store == nil {
			return ocr.Image{}, fmt.Errorf("%w: no object store", ErrNotConfigured)
		}
		data, err := loadImage(ctx, s.Store, key)
		if errors.Is(err, object.ErrNotFound) {
			return ocr.Image{}, fmt.Errorf("%w: %s", ErrImageNotFound, key)
		}
		if err != nil {
			return ocr.Image{}, fmt.Errorf("storage: load image: %w", err)
		}
		return ocr.Image{Data: data, MIME: mimeFor(key)}, nil
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		return ocr.Image{URL: u}, nil
	}
	return ocr.Image{}, ErrNoImage
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

// classifyFailure maps a job error to its error code and whether a retry
// could succeed.
func classifyFailure(err error) (string, bool) {
	switch {
	case err == nil:
		return ErrorCodeInternal, false
	case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeJobTimeout, true
	case errors.Is(err, ErrOCRFailed):
		return ErrorCodeOCRFailed, errors.Is(err, ocr.ErrRateLimited) || errors.Is(err, ocr.ErrTransport)
	case errors.Is(err, ErrNotConfigured):
		return ErrorCodeConfiguration, false
	case errors.Is(err, ErrNoImage), errors.Is(err, ErrImageNotFound):
		return ErrorCodeValidation, false
	}
	if strings.HasPrefix(strings.ToLower(err.Error()), "storage") {
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) <= maxLen {
		return msg
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func loadImage(ctx context.Context, store object.ObjectStore, key string) ([]byte, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func mimeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".heic":
		return "image/heic"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/png"
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ".png"
	}
}
