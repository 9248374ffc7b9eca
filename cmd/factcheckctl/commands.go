package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/bootstrap"
	"factcheck-backend/internal/ocr"
	"factcheck-backend/internal/shared/config"
	"factcheck-backend/internal/shared/storage/db"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/shared/util"
)

const maxImageBytes = 10 << 20

type runner interface {
	Run(ctx context.Context, job analyses.Job) (analyses.AnalysisResult, error)
}

// buildRunner is replaced in tests.
var buildRunner = func(ctx context.Context, cfg config.Config) (runner, func(), error) {
	c, err := bootstrap.BuildComponents(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return c.Pipeline, c.Close, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "factcheckctl",
		Short:        "Fact-check screenshots from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			return telemetry.Init(cfg.LogLevel, cfg.Env)
		},
	}
	root.AddCommand(newAnalyzeCmd(), newMigrateCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var (
		imagePath string
		pretty    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the fact-check pipeline on a local screenshot and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyze(cmd, imagePath, pretty)
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a JPEG, PNG, WebP or HEIC screenshot")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func analyze(cmd *cobra.Command, imagePath string, pretty bool) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return err
	}
	if info.Size() > maxImageBytes {
		return fmt.Errorf("%s is larger than 10MB", imagePath)
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}
	mimeType, ok := util.DetectImageType(data, imagePath)
	if !ok {
		return fmt.Errorf("%s is not a supported image (got %s)", imagePath, mimeType)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pipeline, closeFn, err := buildRunner(ctx, config.Load())
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	result, err := pipeline.Run(ctx, analyses.Job{
		ID:       uuid.NewString(),
		Image:    ocr.Image{Data: data, MIME: mimeType},
		ImageRef: imagePath,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			if down {
				return db.RollbackMigration(ctx, sqlDB)
			}
			return db.RunMigrations(ctx, sqlDB)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
