package exportService

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/model/dbModel"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	tickers model.Table
	history map[string]model.PriceTable
	err     error
}

func (f *fakeLoader) GetSP500History(context.Context) (model.Table, map[string]model.PriceTable, error) {
	return f.tickers, f.history, f.err
}

type fakeRepo struct {
	inTx         bool
	constituents []dbModel.Constituent
	bars         map[string][]dbModel.PriceBar
	err          error
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	f.inTx = true
	defer func() { f.inTx = false }()
	return tFunc(ctx)
}

func (f *fakeRepo) SaveConstituents(_ context.Context, constituents []dbModel.Constituent) error {
	if !f.inTx {
		return errors.New("outside transaction")
	}
	f.constituents = constituents
	return f.err
}

func (f *fakeRepo) SavePriceBars(_ context.Context, symbol string, bars []dbModel.PriceBar) error {
	if !f.inTx {
		return errors.New("outside transaction")
	}
	if f.bars == nil {
		f.bars = map[string][]dbModel.PriceBar{}
	}
	f.bars[symbol] = bars
	return nil
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(context.Context, model.Table, map[string]model.PriceTable) ([]byte, string, error) {
	return []byte("report"), ".xlsx", nil
}

type fakeStorage struct {
	uploaded string
	content  []byte
	cleaned  bool
}

func (f *fakeStorage) UploadFile(_ context.Context, reader io.Reader, filename string) (string, error) {
	f.uploaded = filename
	f.content, _ = io.ReadAll(reader)
	return "https://drive.test/" + filename, nil
}

func (f *fakeStorage) DeleteOldFiles(context.Context) error {
	f.cleaned = true
	return nil
}

type fakeNotifier struct {
	filename string
	caption  string
}

func (f *fakeNotifier) SendReport(_ context.Context, _ io.Reader, filename, caption string) error {
	f.filename = filename
	f.caption = caption
	return nil
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Report.Dir = t.TempDir()
	return cfg
}

func testLoader() *fakeLoader {
	return &fakeLoader{
		tickers: model.NewTable(
			[]string{"Symbol", "Security", "GICS Sector"},
			[][]string{{"AAPL", "MSFT"}, {"Apple Inc.", "Microsoft"}, {"Information Technology", "Information Technology"}},
			2,
		),
		history: map[string]model.PriceTable{
			"AAPL": {Timestamp: []int64{1}, Open: []float64{1}, High: []float64{1}, Low: []float64{1}, Close: []float64{1}, Volume: []uint64{10}},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestExport_AllSinks(t *testing.T) {
	cfg := testConfig(t)
	repo := &fakeRepo{}
	storage := &fakeStorage{}
	notifier := &fakeNotifier{}

	srv := New(cfg, testLoader(), repo, fakeGenerator{}, storage, notifier, nil)
	srv.now = fixedNow

	res, err := srv.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.Report.Dir, "sp500_20240102_030405.xlsx"), res.Path)
	content, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "report", string(content))

	assert.Len(t, repo.constituents, 2)
	assert.Contains(t, repo.bars, "AAPL")

	assert.Equal(t, "sp500_20240102_030405.xlsx", storage.uploaded)
	assert.Equal(t, []byte("report"), storage.content)
	assert.Equal(t, "https://drive.test/sp500_20240102_030405.xlsx", res.DownloadLink)

	assert.Equal(t, storage.uploaded, notifier.filename)
	assert.Contains(t, notifier.caption, "1 symbols")
	assert.Contains(t, notifier.caption, res.DownloadLink)
}

func TestExport_OptionalSinksSkipped(t *testing.T) {
	cfg := testConfig(t)
	srv := New(cfg, testLoader(), nil, fakeGenerator{}, nil, nil, nil)

	res, err := srv.Export(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
	assert.Empty(t, res.DownloadLink)

	require.NoError(t, srv.CleanupStorage(context.Background()))
}

func TestExport_PartialLoad(t *testing.T) {
	cfg := testConfig(t)
	loader := testLoader()
	loader.err = &service.BatchError{Failures: map[string]error{"MSFT": service.ErrNotFound}}
	notifier := &fakeNotifier{}

	srv := New(cfg, loader, nil, fakeGenerator{}, nil, notifier, nil)

	res, err := srv.Export(context.Background())
	var batchErr *service.BatchError
	require.ErrorAs(t, err, &batchErr)

	assert.Equal(t, []string{"MSFT"}, res.Failed)
	assert.FileExists(t, res.Path)
	assert.Contains(t, notifier.caption, "MSFT")
}

func TestExport_LoadFailure(t *testing.T) {
	cfg := testConfig(t)
	loader := &fakeLoader{err: service.ErrNoTable}
	storage := &fakeStorage{}

	srv := New(cfg, loader, nil, fakeGenerator{}, storage, nil, nil)

	_, err := srv.Export(context.Background())
	assert.ErrorIs(t, err, service.ErrNoTable)
	assert.Empty(t, storage.uploaded)
}

func TestExport_PersistFailureStopsExport(t *testing.T) {
	cfg := testConfig(t)
	dbErr := errors.New("db is down")
	storage := &fakeStorage{}

	srv := New(cfg, testLoader(), &fakeRepo{err: dbErr}, fakeGenerator{}, storage, nil, nil)

	_, err := srv.Export(context.Background())
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, storage.uploaded)
}

func TestCleanupStorage(t *testing.T) {
	storage := &fakeStorage{}
	srv := New(testConfig(t), testLoader(), nil, fakeGenerator{}, storage, nil, nil)

	require.NoError(t, srv.CleanupStorage(context.Background()))
	assert.True(t, storage.cleaned)
}
