// raw-importer loads a production workbook (one timestamp column, one column
// per unit code) into generation_data_raw.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/Energy-Exe/energyexe-core-backend/common/database"
	logpkg "github.com/Energy-Exe/energyexe-core-backend/common/logger"
	"github.com/Energy-Exe/energyexe-core-backend/internal/config"
	"github.com/Energy-Exe/energyexe-core-backend/internal/ingest"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/phase"
	"github.com/Energy-Exe/energyexe-core-backend/internal/repository"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		filePath   string
		sheet      string
		workers    int
		chunkSize  int
		batchSize  int
		dryRun     bool
		allColumns bool
	)

	flagSet := pflag.NewFlagSet("raw-importer", pflag.ContinueOnError)
	flagSet.StringVar(&filePath, "file", "", "path of the NVE production workbook (.xlsx)")
	flagSet.StringVar(&sheet, "sheet", "", "sheet name (default first sheet)")
	flagSet.IntVar(&workers, "workers", 0, "parallel chunk workers (default IMPORT_WORKERS)")
	flagSet.IntVar(&chunkSize, "chunk-size", 0, "rows per chunk (default IMPORT_CHUNK_SIZE)")
	flagSet.IntVar(&batchSize, "batch-size", 10000, "rows per COPY batch")
	flagSet.BoolVar(&dryRun, "dry-run", false, "parse only, do not insert")
	flagSet.BoolVar(&allColumns, "all-columns", false, "import columns whose code has no registered phase")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if filePath == "" {
		return fmt.Errorf("--file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if workers < 1 {
		workers = cfg.Import.Workers
	}
	if chunkSize < 1 {
		chunkSize = cfg.Import.ChunkSize
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "raw-importer")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	layout := ingest.NVELayout()
	layout.Sheet = sheet

	var known func(string) bool
	if !allColumns {
		phases, err := repository.NewPhaseRepository(db, log).ListPhases(ctx, []models.Source{layout.Source})
		if err != nil {
			return err
		}
		codes := make(map[string]bool)
		for _, c := range phase.NewSnapshot(phases).Codes(layout.Source) {
			codes[c] = true
		}
		log.Info("Loaded unit codes", zap.Int("codes", len(codes)))
		known = func(code string) bool { return codes[code] }
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	importer := ingest.NewImporter(layout, workers, chunkSize, log)
	rows, err := importer.ReadWorkbook(f)
	if err != nil {
		return err
	}
	result, err := importer.Parse(ctx, rows, known)
	if err != nil {
		return err
	}
	log.Info("Parsed workbook",
		zap.String("file", filePath),
		zap.Int("observations", len(result.Observations)),
		zap.Int("mapped_columns", result.MappedColumns),
		zap.Int("chunks", result.Chunks),
		zap.Int("skipped_rows", result.SkippedRows),
		zap.Int("skipped_cells", result.SkippedCells),
	)
	if dryRun {
		return nil
	}

	rawRepo := repository.NewRawRepository(db, log)
	inserted := 0
	for i := 0; i < len(result.Observations); i += batchSize {
		end := i + batchSize
		if end > len(result.Observations) {
			end = len(result.Observations)
		}
		n, err := rawRepo.InsertBatch(ctx, result.Observations[i:end])
		if err != nil {
			return fmt.Errorf("failed to insert batch at row %d: %w", i, err)
		}
		inserted += n
		log.Info("Inserted batch", zap.Int("inserted", inserted), zap.Int("total", len(result.Observations)))
	}
	return nil
}
