package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	outDir = "out/localidades_por_provincia"
	header = "id,localidad,provincia,cp,id_prov_mstr\n"
)

func newPipeline(t *testing.T) (*PipelineService, *MockLocationStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, Preflight(fs, outDir))
	store := new(MockLocationStore)
	return NewPipelineService(store, fs, PipelineOptions{OutputDir: outDir, InputPath: "localidades.csv"}), store, fs
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join(outDir, name))
	require.NoError(t, err)
	return string(data)
}

func listOutput(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, outDir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPreflight(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, Preflight(fs, outDir))

		info, err := fs.Stat(outDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory aborts without touching it", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, filepath.Join(outDir, "Chaco.csv"), []byte("previous"), 0o644))

		err := Preflight(fs, outDir)
		var preflightErr *PreflightError
		require.True(t, errors.As(err, &preflightErr))
		assert.Equal(t, outDir, preflightErr.Path)

		data, err := afero.ReadFile(fs, filepath.Join(outDir, "Chaco.csv"))
		require.NoError(t, err)
		assert.Equal(t, "previous", string(data))
	})
}

func TestPipelineService_Run_BuenosAires(t *testing.T) {
	pipeline, store, fs := newPipeline(t)
	input := header +
		"1,Palermo,Buenos Aires,1425,1\n" +
		"2,Recoleta,Buenos Aires,,1\n"
	batch := models.RawBatch{
		Mapping: models.PositionalMapping,
		Records: [][]string{
			{"1", "Palermo", "Buenos Aires", "1425", "1"},
			{"2", "Recoleta", "Buenos Aires", "", "1"},
		},
	}
	cursor := newSliceCursor(palermo, recoleta)

	store.On("EnsureInitialized", mock.Anything).Return(nil).Once()
	store.On("InsertMany", mock.Anything, batch).Return(int64(2), nil).Once()
	store.On("CountLocations", mock.Anything).Return(int64(2), nil).Once()
	store.On("ListProvinces", mock.Anything).Return([]string{"Buenos Aires"}, nil).Once()
	store.On("QueryByProvince", mock.Anything, "Buenos Aires").Return(cursor, nil).Once()

	summary, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Rows:      2,
		Provinces: 1,
		Files:     []string{filepath.Join(outDir, "Buenos Aires.csv")},
	}, summary)

	assert.Equal(t, header+
		"1,Palermo,Buenos Aires,1425,1\n"+
		"2,Recoleta,Buenos Aires,,1\n"+
		"cantidad_localidades\n"+
		"2\n", readFile(t, fs, "Buenos Aires.csv"))
	assert.True(t, cursor.closed)
	store.AssertExpectations(t)
}

func TestPipelineService_Run_HeaderOnly(t *testing.T) {
	pipeline, store, fs := newPipeline(t)

	store.On("EnsureInitialized", mock.Anything).Return(nil)
	store.On("InsertMany", mock.Anything, models.RawBatch{Mapping: models.PositionalMapping}).Return(int64(0), nil)
	store.On("CountLocations", mock.Anything).Return(int64(0), nil)
	store.On("ListProvinces", mock.Anything).Return([]string{}, nil)

	summary, err := pipeline.Run(context.Background(), strings.NewReader(header))
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: []string{}}, summary)
	assert.Empty(t, listOutput(t, fs))
	store.AssertExpectations(t)
}

func TestPipelineService_Run_BadRowWritesNothing(t *testing.T) {
	pipeline, store, fs := newPipeline(t)
	insertErr := &repository.InsertError{Row: 1, Err: errors.New(`invalid id "abc"`)}

	store.On("EnsureInitialized", mock.Anything).Return(nil)
	store.On("InsertMany", mock.Anything, mock.Anything).Return(int64(0), insertErr)

	_, err := pipeline.Run(context.Background(), strings.NewReader(header+"abc,Palermo,Buenos Aires,1425,1\n"))
	require.Error(t, err)
	assert.True(t, IsDatabaseError(err))
	assert.False(t, IsCsvError(err))
	assert.Empty(t, listOutput(t, fs))
	store.AssertNotCalled(t, "ListProvinces", mock.Anything)
}

func TestPipelineService_Run_SchemaFailureStops(t *testing.T) {
	pipeline, store, _ := newPipeline(t)
	store.On("EnsureInitialized", mock.Anything).Return(&repository.SchemaError{Err: assert.AnError})

	_, err := pipeline.Run(context.Background(), strings.NewReader(header))
	assert.True(t, IsDatabaseError(err))
	store.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)
}

func TestPipelineService_Load(t *testing.T) {
	t.Run("ragged row is a csv error", func(t *testing.T) {
		pipeline, store, _ := newPipeline(t)

		_, err := pipeline.Load(context.Background(), strings.NewReader(header+"1,Palermo,Buenos Aires\n"))
		var csvErr *CsvReadError
		require.True(t, errors.As(err, &csvErr))
		assert.Equal(t, "localidades.csv", csvErr.Path)
		assert.False(t, IsDatabaseError(err))
		store.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)
	})

	t.Run("count mismatch is an insert error", func(t *testing.T) {
		pipeline, store, _ := newPipeline(t)
		store.On("InsertMany", mock.Anything, mock.Anything).Return(int64(1), nil)
		store.On("CountLocations", mock.Anything).Return(int64(5), nil)

		_, err := pipeline.Load(context.Background(), strings.NewReader(header+"1,Palermo,Buenos Aires,1425,1\n"))
		var insertErr *repository.InsertError
		require.True(t, errors.As(err, &insertErr))
	})
}

func TestPipelineService_Export(t *testing.T) {
	t.Run("trailer counts add up to the loaded rows", func(t *testing.T) {
		pipeline, store, fs := newPipeline(t)
		store.On("ListProvinces", mock.Anything).Return([]string{"Buenos Aires", "Chaco"}, nil)
		store.On("QueryByProvince", mock.Anything, "Buenos Aires").Return(newSliceCursor(palermo, recoleta), nil)
		store.On("QueryByProvince", mock.Anything, "Chaco").Return(newSliceCursor(chaco), nil)

		files, err := pipeline.Export(context.Background())
		require.NoError(t, err)
		assert.Len(t, files, 2)
		assert.Equal(t, []string{"Buenos Aires.csv", "Chaco.csv"}, listOutput(t, fs))

		var total int
		for _, name := range listOutput(t, fs) {
			lines := strings.Split(strings.TrimSuffix(readFile(t, fs, name), "\n"), "\n")
			require.GreaterOrEqual(t, len(lines), 3)
			assert.Equal(t, TrailerLabel, lines[len(lines)-2])
			n, err := strconv.Atoi(lines[len(lines)-1])
			require.NoError(t, err)
			assert.Equal(t, len(lines)-3, n)
			total += n
		}
		assert.Equal(t, 3, total)
	})

	t.Run("colliding file names are not overwritten", func(t *testing.T) {
		pipeline, store, fs := newPipeline(t)
		store.On("ListProvinces", mock.Anything).Return([]string{"A/B", "A_B"}, nil)
		store.On("QueryByProvince", mock.Anything, "A/B").Return(newSliceCursor(palermo), nil)
		store.On("QueryByProvince", mock.Anything, "A_B").Return(newSliceCursor(chaco), nil)

		files, err := pipeline.Export(context.Background())
		var ioErr *ExportIoError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, filepath.Join(outDir, "A_B.csv"), ioErr.Path)
		assert.Len(t, files, 1)
		assert.Contains(t, readFile(t, fs, "A_B.csv"), "Palermo")
	})

	t.Run("cursor failure is a database error", func(t *testing.T) {
		pipeline, store, _ := newPipeline(t)
		cursor := newSliceCursor(palermo)
		cursor.err = &repository.QueryError{Op: "iterate", Err: assert.AnError}
		store.On("ListProvinces", mock.Anything).Return([]string{"Buenos Aires"}, nil)
		store.On("QueryByProvince", mock.Anything, "Buenos Aires").Return(cursor, nil)

		_, err := pipeline.Export(context.Background())
		assert.True(t, IsDatabaseError(err))
		assert.True(t, cursor.closed)
	})

	t.Run("cancelled context stops between provinces", func(t *testing.T) {
		pipeline, store, _ := newPipeline(t)
		store.On("ListProvinces", mock.Anything).Return([]string{"Buenos Aires"}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pipeline.Export(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		store.AssertNotCalled(t, "QueryByProvince", mock.Anything, mock.Anything)
	})
}
