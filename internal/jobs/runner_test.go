package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/database"
	"github.com/xelth-com/arcasync/internal/models"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
	"github.com/xelth-com/arcasync/internal/sync"
	"github.com/xelth-com/arcasync/internal/websocket"
)

type recordingPublisher struct {
	mu     gosync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(e websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestLedger(t *testing.T) *GormLedger {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive across goroutines
	sqlDB.SetMaxOpenConns(1)
	db := database.Wrap(gdb)
	require.NoError(t, db.Migrate())
	return NewGormLedger(db)
}

func newTestRunner(t *testing.T) (*Runner, *GormLedger, *recordingPublisher) {
	t.Helper()
	ledger := newTestLedger(t)
	events := &recordingPublisher{}
	r := NewRunner(t.TempDir(), ledger, events)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r, ledger, events
}

func TestRunnerRecordsSuccessfulRun(t *testing.T) {
	r, ledger, events := newTestRunner(t)
	r.Register(Job{Name: "brands", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		obs.Logger().Printf("working")
		res := sync.NewResult("manufacturers", obs)
		res.Created = 2
		res.Updated = 1
		return res, nil
	}})

	run, err := r.Trigger(context.Background(), "brands", TriggerHTTP, true)
	require.NoError(t, err)
	res, runErr := run.Result()
	require.NoError(t, runErr)
	assert.Equal(t, 2, res.Created)

	rows, err := ledger.Recent(context.Background(), "brands", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, run.ID, rows[0].RunID)
	assert.Equal(t, models.RunStatusSuccess, rows[0].Status)
	assert.Equal(t, TriggerHTTP, rows[0].Trigger)
	assert.Equal(t, 2, rows[0].Created)
	assert.True(t, rows[0].Finished())

	require.NotEmpty(t, run.LogFile)
	assert.True(t, strings.HasPrefix(filepath.Base(run.LogFile), "brands_job_log_"))
	content, err := os.ReadFile(run.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "working")

	assert.Equal(t, []string{websocket.EventJobStarted, websocket.EventJobFinished}, events.types())
}

func TestRunnerRejectsConcurrentRunOfSameJob(t *testing.T) {
	r, _, _ := newTestRunner(t)
	release := make(chan struct{})
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		<-release
		return sync.NewResult("products", obs), nil
	}})
	r.Register(Job{Name: "brands", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		return sync.NewResult("manufacturers", obs), nil
	}})

	first, err := r.Start("products", TriggerHTTP)
	require.NoError(t, err)

	_, err = r.Start("products", TriggerSchedule)
	assert.ErrorIs(t, err, ErrJobRunning)

	// other jobs are not blocked
	other, err := r.Trigger(context.Background(), "brands", TriggerHTTP, true)
	require.NoError(t, err)
	_, otherErr := other.Result()
	assert.NoError(t, otherErr)

	assert.Len(t, r.Running(), 1)
	close(release)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)

	again, err := r.Start("products", TriggerHTTP)
	require.NoError(t, err)
	<-again.Done()
}

func TestRunnerUnknownJob(t *testing.T) {
	r, _, _ := newTestRunner(t)
	_, err := r.Trigger(context.Background(), "nope", TriggerHTTP, false)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestRunnerPartialRunStoresFailuresWithoutBodies(t *testing.T) {
	r, ledger, events := newTestRunner(t)
	r.Register(Job{Name: "products-stocks", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		res := sync.NewResult("products-stocks", obs)
		res.Updated = 1
		res.Fail("A1", sync.OpStock, &prestashop.APIError{Method: "PUT", Path: "stock_availables/1", StatusCode: 500, Body: "<secret/>"})
		res.Count("zero")
		return res, nil
	}})

	run, err := r.Trigger(context.Background(), "products-stocks", TriggerHTTP, true)
	require.NoError(t, err)

	rows, err := ledger.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RunStatusPartial, rows[0].Status)
	assert.Equal(t, 1, rows[0].Errors)
	assert.NotContains(t, string(rows[0].Failures), "secret")

	var failures []sync.Failure
	require.NoError(t, json.Unmarshal(rows[0].Failures, &failures))
	require.Len(t, failures, 1)
	assert.Equal(t, "A1", failures[0].Key)
	assert.JSONEq(t, `{"zero":1}`, string(rows[0].Counters))

	assert.Contains(t, events.types(), websocket.EventItemFailed)

	// the stock error log is served once, then removed
	data, err := TakeErrorLog(r.LogDir())
	require.NoError(t, err)
	assert.Contains(t, string(data), "products-stocks stock A1")
	_, err = TakeErrorLog(r.LogDir())
	assert.ErrorIs(t, err, ErrNoLog)

	name, logData, err := LatestRunLog(r.LogDir(), "products-stocks")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(run.LogFile), name)
	assert.Contains(t, string(logData), "<secret/>")
}

func TestRunnerRecordsErrorsAndPanics(t *testing.T) {
	r, ledger, _ := newTestRunner(t)
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		return nil, snapshot.ErrNoRevision
	}})
	r.Register(Job{Name: "brands", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		panic("boom")
	}})

	run, err := r.Trigger(context.Background(), "products", TriggerCLI, true)
	require.NoError(t, err)
	_, runErr := run.Result()
	assert.ErrorIs(t, runErr, snapshot.ErrNoRevision)

	run, err = r.Trigger(context.Background(), "brands", TriggerCLI, true)
	require.NoError(t, err)
	_, runErr = run.Result()
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "boom")

	rows, err := ledger.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.RunStatusError, row.Status)
		assert.NotEmpty(t, row.ErrorDetail)
	}
}

func TestRunnerShutdownCancelsRuns(t *testing.T) {
	r, ledger, _ := newTestRunner(t)
	started := make(chan struct{})
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		close(started)
		<-ctx.Done()
		res := sync.NewResult("products", obs)
		res.Cancelled = true
		return res, nil
	}})

	run, err := r.Start("products", TriggerHTTP)
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	<-run.Done()

	rows, err := ledger.Recent(context.Background(), "products", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RunStatusCancelled, rows[0].Status)

	_, err = r.Start("products", TriggerHTTP)
	assert.Error(t, err)
}

func TestTriggerWaitHonoursCallerContext(t *testing.T) {
	r, _, _ := newTestRunner(t)
	release := make(chan struct{})
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		<-release
		return sync.NewResult("products", obs), nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := r.Trigger(ctx, "products", TriggerHTTP, true)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)

	// the run itself keeps going
	select {
	case <-run.Done():
		t.Fatal("run should still be active")
	default:
	}
	close(release)
	<-run.Done()
}

func TestRunLogPathAddsCounter(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	first := runLogPath(dir, "brands", day)
	assert.Equal(t, filepath.Join(dir, "brands_job_log_2026-05-04.txt"), first)
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))

	second := runLogPath(dir, "brands", day)
	assert.Equal(t, filepath.Join(dir, "brands_job_log_2026-05-04(1).txt"), second)
	require.NoError(t, os.WriteFile(second, []byte("y"), 0o644))

	assert.Equal(t, filepath.Join(dir, "brands_job_log_2026-05-04(2).txt"), runLogPath(dir, "brands", day))
}

func TestLatestRunLogMissing(t *testing.T) {
	_, _, err := LatestRunLog(t.TempDir(), "brands")
	assert.ErrorIs(t, err, ErrNoLog)
}

func TestSchedulerConfigure(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Register(Job{Name: "brands", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		return nil, nil
	}})
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		return nil, nil
	}})

	s := NewScheduler(r)
	err := s.Configure(map[string]string{
		"brands":   "0 0 3 * * *",
		"products": "",
		"ghost":    "0 * * * * *",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Equal(t, []string{"brands"}, s.Scheduled())

	s = NewScheduler(r)
	err = s.Configure(map[string]string{"products": "every day"})
	require.Error(t, err)
	assert.Empty(t, s.Scheduled())
}

func TestSchedulerTickSkipsActiveRun(t *testing.T) {
	r, _, _ := newTestRunner(t)
	release := make(chan struct{})
	r.Register(Job{Name: "products", Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		<-release
		return nil, nil
	}})
	s := NewScheduler(r)

	run, err := r.Start("products", TriggerHTTP)
	require.NoError(t, err)
	s.tick("products")
	assert.Len(t, r.Running(), 1)
	assert.Equal(t, run, r.Running()[0])

	close(release)
	<-run.Done()
}

type fakeCatalog struct {
	buildErr error
	brands   []string
}

func (f *fakeCatalog) Build(ctx context.Context) (*snapshot.Snapshot, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &snapshot.Snapshot{}, nil
}

func (f *fakeCatalog) Brands(ctx context.Context) ([]string, error) {
	return f.brands, nil
}

func (f *fakeCatalog) Categories(ctx context.Context) ([]snapshot.Category, error) {
	return nil, errors.New("erp offline")
}

type fakeImporter struct{ runs int }

func (f *fakeImporter) Run(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
	f.runs++
	return sync.NewResult("customers", obs), nil
}

func TestRegisterAllCoversConfiguredJobs(t *testing.T) {
	r, _, _ := newTestRunner(t)
	imp := &fakeImporter{}
	RegisterAll(r, Deps{Catalog: &fakeCatalog{buildErr: snapshot.ErrNoRevision}, Importer: imp})

	var names []string
	for _, j := range r.Jobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, config.JobNames, names)

	// no revision: the run fails before the store is touched (Remote is nil)
	for _, name := range []string{"products", "products-details", "products-images", "products-stocks"} {
		run, err := r.Trigger(context.Background(), name, TriggerCLI, true)
		require.NoError(t, err)
		_, runErr := run.Result()
		assert.ErrorIs(t, runErr, snapshot.ErrNoRevision, name)
	}

	run, err := r.Trigger(context.Background(), "categories-upload", TriggerCLI, true)
	require.NoError(t, err)
	_, runErr := run.Result()
	assert.ErrorContains(t, runErr, "erp offline")

	run, err = r.Trigger(context.Background(), "customers-import", TriggerCLI, true)
	require.NoError(t, err)
	_, runErr = run.Result()
	assert.NoError(t, runErr)
	assert.Equal(t, 1, imp.runs)
}
