package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/smccd/doorcard-data/modules/migration/persistence"
	"github.com/smccd/doorcard-data/modules/migration/services"
	"github.com/smccd/doorcard-data/pkg/configuration"
)

type importFlags struct {
	inputDir   string
	rejectsDir string
	reportPath string
	dryRun     bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy doorcard extracts from a directory of CSV/XLSX files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputDir, "input", "", "Directory containing the legacy extracts (required)")
	cmd.Flags().StringVar(&flags.rejectsDir, "rejects", "", "Directory for reject files (default: IMPORT_REJECTS_DIR)")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write the run summary as JSON to this path")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Run the full pipeline without writing to the database")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runImport(ctx context.Context, flags importFlags) error {
	conf := configuration.Use()
	log := conf.Logger().WithField("component", "import")

	opts := services.Options{
		Dir:                  flags.inputDir,
		RejectsDir:           conf.Import.RejectsDir,
		DryRun:               flags.dryRun,
		EmailDomain:          conf.Import.EmailDomain,
		DefaultPassword:      conf.Import.DefaultPassword,
		UserBatchSize:        conf.Import.UserBatchSize,
		DoorcardBatchSize:    conf.Import.DoorcardBatchSize,
		AppointmentBatchSize: conf.Import.AppointmentBatchSize,
		SummaryErrorLimit:    conf.Import.SummaryErrorLimit,
	}
	if flags.rejectsDir != "" {
		opts.RejectsDir = flags.rejectsDir
	}

	var store persistence.Store
	if flags.dryRun {
		store = persistence.NewDryRunStore()
	} else {
		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := pgxpool.New(connCtx, conf.Database.Opts)
		if err != nil {
			return withCode(exitDB, fmt.Errorf("connect database: %w", err))
		}
		defer pool.Close()
		store = persistence.NewPgStore(pool)
	}

	sum, err := services.NewImportService(store, log, opts).Run(ctx)
	if err != nil {
		var se *services.SetupError
		if as(err, &se) {
			return withCode(exitInput, err)
		}
		return withCode(exitDB, err)
	}

	if flags.reportPath != "" {
		if err := writeJSONFile(flags.reportPath, sum); err != nil {
			return err
		}
	}
	// rejected rows are reported through the summary and reject files; only
	// setup and systemic failures exit non-zero
	return writeJSONLine(sum)
}
