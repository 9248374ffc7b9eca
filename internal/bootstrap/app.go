package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/chat"
	"factcheck-backend/internal/queue"
	"factcheck-backend/internal/services/health"
	"factcheck-backend/internal/shared/config"
	"factcheck-backend/internal/shared/server"
	"factcheck-backend/internal/shared/storage/db"
	"factcheck-backend/internal/shared/storage/object"
	localstore "factcheck-backend/internal/shared/storage/object/local"
	s3store "factcheck-backend/internal/shared/storage/object/s3"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/uploads"
)

// App holds shared dependencies for every binary.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Presigner         uploads.Presigner
	Queue             queue.Client
	Components        *Components
	AnalysesRepo      analyses.Repo
	AnalysesService   *analyses.Service
	AnalysisProcessor AnalysisProcessor
	ChatService       *chat.Service
	Health            *health.Service
	AnalysisHandler   *analyses.Handler
	ChatHandler       *chat.Handler
	UploadsHandler    *uploads.Handler
}

// AnalysisProcessor allows callers to override analysis processing for tests.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
}

// Processor returns the override when set, else the analyses service.
func (a *App) Processor() AnalysisProcessor {
	if a == nil {
		return nil
	}
	if a.AnalysisProcessor != nil {
		return a.AnalysisProcessor
	}
	if a.AnalysesService == nil {
		return nil
	}
	return a.AnalysesService
}

// Close releases pooled connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Components != nil {
		a.Components.Close()
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		_ = a.DB.Close()
	}
}

// Build prepares shared dependencies and the HTTP router. Missing model keys
// are not fatal here: jobs fail with a configuration error and /health says why.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, presigner, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	components, err := BuildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		Store:      store,
		Presigner:  presigner,
		Queue:      queueClient,
		Components: components,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          app.Health,
		AnalysisHandler: app.AnalysisHandler,
		ChatHandler:     app.ChatHandler,
		UploadsHandler:  app.UploadsHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database", map[string]any{"mode": "memory", "reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database", map[string]any{"mode": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

// buildStore picks where screenshots live. UPLOADS_S3_BUCKET wins over
// OBJECT_STORE=s3 so presigned uploads and job reads share one bucket.
func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, uploads.Presigner, error) {
	if bucket := strings.TrimSpace(cfg.UploadsBucket); bucket != "" {
		s, err := s3store.New(ctx, cfg.AWSRegion, bucket, cfg.UploadsPrefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	switch cfg.ObjectStoreType {
	case "s3":
		s, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil, nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildServices(app *App) error {
	var analysisRepo analyses.Repo
	if app.DB != nil {
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
	}

	analysisSvc := &analyses.Service{
		Repo:     analysisRepo,
		Store:    app.Store,
		Pipeline: app.Components.Pipeline,
		Queue:    app.Queue,
	}

	chatSvc := &chat.Service{
		Model: app.Components.Chat,
		Name:  app.Config.ChatModel,
		Jobs:  analysisSvc,
	}

	hs := app.Components.Health()
	if app.DB != nil {
		hs.Checks["database"] = app.DB
	}

	app.AnalysesRepo = analysisRepo
	app.AnalysesService = analysisSvc
	app.ChatService = chatSvc
	app.Health = hs
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.ChatHandler = chat.NewHandler(chatSvc)
	app.UploadsHandler = uploads.NewHandler(app.Store, app.Presigner)

	if app.AnalysisHandler == nil || app.ChatHandler == nil || app.UploadsHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
