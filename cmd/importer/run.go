package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"localidades-etl/internal/config"
	"localidades-etl/internal/database"
	"localidades-etl/internal/repository"
	"localidades-etl/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	msgOutputExists = "La carpeta de datos procesados ya existe. " +
		"Por favor, elimínela si quiere repetir la inserción."
	msgDone        = "> Procedimiento finalizado sin problemas."
	msgCsvError    = "Ha ocurrido un error al leer un archivo CSV: %v.\n"
	msgDBError     = "Ha ocurrido un error en una operación de la base de datos: %v\n"
	defaultCfgPath = "./configs"
)

// exitCode is returned from the command when the process must exit with a
// specific status.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

type options struct {
	configPath   string
	input        string
	output       string
	driver       string
	encoding     string
	batchSize    int
	timeout      time.Duration
	strict       bool
	rawFilenames bool
}

// app holds the collaborators a run needs, so tests can swap the
// filesystem and the database.
type app struct {
	fs   afero.Fs
	open func(ctx context.Context, cfg config.Config) (service.LocationStore, io.Closer, error)
}

// openStore connects with a single attempt and picks the repository for
// the configured driver.
func openStore(ctx context.Context, cfg config.Config) (service.LocationStore, io.Closer, error) {
	handle, err := database.Connect(ctx, cfg.Database())
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.ForHandle(handle, cfg.BatchSize)
	if err != nil {
		handle.Close()
		return nil, nil, err
	}
	return store, handle, nil
}

func newRootCmd(a *app) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Load localidades into the database and export one CSV per province",
		Long: `importer resets the localidades table, loads the input CSV into it with a
single bulk insert and writes one CSV file per province into the output
directory. The output directory must not exist; remove it to run again.

Exit Codes:
  0  - Success, or a reported CSV/database error without --strict
  1  - Output directory exists, reported error with --strict, or unexpected failure
  2  - CLI usage or configuration error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg.SetupLogging(cmd.ErrOrStderr())

			ctx := cmd.Context()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			if code := a.run(ctx, cmd.OutOrStdout(), cfg, opts); code != 0 {
				return exitCode(code)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", defaultCfgPath, "Directory holding app.env")
	f.StringVarP(&opts.input, "input", "i", "", "Input CSV file (overrides INPUT_PATH)")
	f.StringVarP(&opts.output, "output", "o", "", "Output directory, must not exist (overrides OUTPUT_DIR)")
	f.StringVar(&opts.driver, "driver", "", "Database driver: mysql or postgres (overrides DB_DRIVER)")
	f.StringVar(&opts.encoding, "encoding", "", "Input encoding, e.g. utf-8 or latin1 (overrides INPUT_ENCODING)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Rows per INSERT statement (overrides BATCH_SIZE)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	f.BoolVar(&opts.strict, "strict", false, "Exit with status 1 on reported CSV and database errors")
	f.BoolVar(&opts.rawFilenames, "raw-filenames", false, "Use province names verbatim as file names")

	return cmd
}

// loadConfig reads app.env and the environment, then applies the flags
// that were given explicitly.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputPath = opts.input
	}
	if flags.Changed("output") {
		cfg.OutputDir = opts.output
	}
	if flags.Changed("driver") {
		cfg.DBDriver = strings.ToLower(strings.TrimSpace(opts.driver))
	}
	if flags.Changed("encoding") {
		cfg.InputEncoding = opts.encoding
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = opts.batchSize
	}
	return cfg, cfg.Validate()
}

// run executes the pipeline and returns the process exit status. The store
// is closed exactly once on every path that opened it.
func (a *app) run(ctx context.Context, stdout io.Writer, cfg config.Config, opts options) int {
	enc, err := service.InputDecoder(cfg.InputEncoding)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	if err := service.Preflight(a.fs, cfg.OutputDir); err != nil {
		var preflightErr *service.PreflightError
		if errors.As(err, &preflightErr) {
			fmt.Fprintln(stdout, msgOutputExists)
			return 1
		}
		log.Error().Err(err).Msg("preflight failed")
		return 1
	}

	store, closer, err := a.open(ctx, cfg)
	if err != nil {
		return report(stdout, err, opts.strict)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database connection")
		}
	}()

	input, err := a.fs.Open(cfg.InputPath)
	if err != nil {
		return report(stdout, &service.CsvReadError{Path: cfg.InputPath, Err: err}, opts.strict)
	}
	defer input.Close()

	pipeline := service.NewPipelineService(store, a.fs, service.PipelineOptions{
		OutputDir:     cfg.OutputDir,
		InputPath:     cfg.InputPath,
		InputEncoding: enc,
		RawFilenames:  opts.rawFilenames,
	})

	summary, err := pipeline.Run(ctx, input)
	if err != nil {
		return report(stdout, err, opts.strict)
	}

	log.Info().
		Int64("rows", summary.Rows).
		Int("provinces", summary.Provinces).
		Str("driver", cfg.DBDriver).
		Msg("run finished")
	fmt.Fprintln(stdout, msgDone)
	return 0
}

// report prints CSV and database errors for the user. Anything else is an
// unexpected failure.
func report(stdout io.Writer, err error, strict bool) int {
	switch {
	case service.IsCsvError(err):
		fmt.Fprintf(stdout, msgCsvError, err)
	case service.IsDatabaseError(err):
		fmt.Fprintf(stdout, msgDBError, err)
	default:
		log.Error().Err(err).Msg("run failed")
		return 1
	}
	if strict {
		return 1
	}
	return 0
}
