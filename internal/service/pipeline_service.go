package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
)

// TrailerLabel heads the row count written at the end of every export file.
const TrailerLabel = "cantidad_localidades"

// LocationStore is the storage the pipeline loads into and exports from.
type LocationStore interface {
	EnsureInitialized(ctx context.Context) error
	InsertMany(ctx context.Context, batch models.RawBatch) (int64, error)
	ListProvinces(ctx context.Context) ([]string, error)
	QueryByProvince(ctx context.Context, province string) (repository.LocationCursor, error)
	CountLocations(ctx context.Context) (int64, error)
}

// PipelineOptions configures a pipeline run.
type PipelineOptions struct {
	OutputDir     string
	InputPath     string
	InputEncoding encoding.Encoding
	RawFilenames  bool
}

// Summary describes a finished run.
type Summary struct {
	Rows      int64
	Provinces int
	Files     []string
}

// PipelineService loads the input into the store and writes one CSV file
// per province.
type PipelineService struct {
	store LocationStore
	fs    afero.Fs
	opts  PipelineOptions
}

// NewPipelineService creates a pipeline over store writing to fs.
func NewPipelineService(store LocationStore, fs afero.Fs, opts PipelineOptions) *PipelineService {
	return &PipelineService{store: store, fs: fs, opts: opts}
}

// Preflight refuses to run when dir exists, then creates it. It must run
// before anything else so that a previous run's output is never touched.
func Preflight(fs afero.Fs, dir string) error {
	_, err := fs.Stat(dir)
	if err == nil {
		return &PreflightError{Path: dir}
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("service: failed to stat %s: %w", dir, err)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("service: failed to create %s: %w", dir, err)
	}
	return nil
}

// Run resets the store, loads input into it and exports every province.
func (s *PipelineService) Run(ctx context.Context, input io.Reader) (Summary, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return Summary{}, err
	}

	rows, err := s.Load(ctx, input)
	if err != nil {
		return Summary{}, err
	}

	files, err := s.Export(ctx)
	if err != nil {
		return Summary{Rows: rows}, err
	}

	return Summary{Rows: rows, Provinces: len(files), Files: files}, nil
}

// Load parses input and inserts every data row in one batch. The table is
// checked afterwards to hold exactly the parsed rows.
func (s *PipelineService) Load(ctx context.Context, input io.Reader) (int64, error) {
	batch, err := ReadLocations(input, s.opts.InputEncoding)
	if err != nil {
		var csvErr *CsvReadError
		if errors.As(err, &csvErr) {
			csvErr.Path = s.opts.InputPath
		}
		return 0, err
	}

	inserted, err := s.store.InsertMany(ctx, batch)
	if err != nil {
		return 0, err
	}

	count, err := s.store.CountLocations(ctx)
	if err != nil {
		return 0, err
	}
	if count != int64(len(batch.Records)) {
		return 0, &repository.InsertError{Err: fmt.Errorf("parsed %d rows but table holds %d", len(batch.Records), count)}
	}

	log.Info().Int64("rows", inserted).Msg("locations loaded")
	return inserted, nil
}

// Export writes one file per province, in the order the store lists them,
// and returns the paths written.
func (s *PipelineService) Export(ctx context.Context) ([]string, error) {
	provinces, err := s.store.ListProvinces(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(provinces))
	for _, province := range provinces {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		path, n, err := s.exportProvince(ctx, province)
		if err != nil {
			return files, err
		}
		log.Debug().Str("province", province).Str("file", path).Int64("rows", n).Msg("province exported")
		files = append(files, path)
	}

	log.Info().Int("files", len(files)).Str("dir", s.opts.OutputDir).Msg("export finished")
	return files, nil
}

func (s *PipelineService) exportProvince(ctx context.Context, province string) (string, int64, error) {
	cursor, err := s.store.QueryByProvince(ctx, province)
	if err != nil {
		return "", 0, err
	}
	defer cursor.Close()

	path := filepath.Join(s.opts.OutputDir, ProvinceFilename(province, s.opts.RawFilenames))
	// O_EXCL: two provinces that map to the same file name must not
	// silently overwrite each other.
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, &ExportIoError{Path: path, Err: err}
	}

	n, err := writeProvince(f, cursor)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &ExportIoError{Path: path, Err: cerr}
	}
	if err != nil {
		var ioErr *ExportIoError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = path
		}
		return "", 0, err
	}
	return path, n, nil
}

// writeProvince writes header, rows and trailer. The trailer count is the
// total reported by the cursor.
func writeProvince(w io.Writer, cursor repository.LocationCursor) (int64, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return 0, &ExportIoError{Err: err}
	}

	var written int64
	for cursor.Next() {
		if err := cw.Write(cursor.Location().Record()); err != nil {
			return 0, &ExportIoError{Err: err}
		}
		written++
	}
	if err := cursor.Err(); err != nil {
		return 0, err
	}
	if written != cursor.Total() {
		log.Warn().Int64("written", written).Int64("total", cursor.Total()).Msg("row count differs from query total")
	}

	if err := cw.Write([]string{TrailerLabel}); err != nil {
		return 0, &ExportIoError{Err: err}
	}
	if err := cw.Write([]string{strconv.FormatInt(cursor.Total(), 10)}); err != nil {
		return 0, &ExportIoError{Err: err}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, &ExportIoError{Err: err}
	}
	return written, nil
}
