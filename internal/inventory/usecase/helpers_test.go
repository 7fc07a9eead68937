package usecase_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type ledgerEnv struct {
	db   *sqlx.DB
	txm  *database.TxManager
	repo *repository.SQLRepository
	uc   inventory.UseCase
}

var testDefaults = model.Thresholds{LowStockThreshold: 10}

// newLedger builds the ledger on a fresh SQLite file.
func newLedger(t *testing.T, acquireTimeout time.Duration, opts ...usecase.Option) *ledgerEnv {
	t.Helper()
	return buildLedger(t, acquireTimeout, usecase.Config{Defaults: testDefaults, CacheTTL: time.Minute}, opts...)
}

func newLedgerWithConfig(t *testing.T, cfg usecase.Config, opts ...usecase.Option) *ledgerEnv {
	t.Helper()
	return buildLedger(t, time.Second, cfg, opts...)
}

func buildLedger(t *testing.T, acquireTimeout time.Duration, cfg usecase.Config, opts ...usecase.Option) *ledgerEnv {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	txm := database.NewTxManager(db, acquireTimeout)
	repo := repository.NewSQLRepository(db)
	uc := usecase.NewInventoryUseCase(repo, txm, logger.NewNop(), cfg, opts...)

	return &ledgerEnv{db: db, txm: txm, repo: repo, uc: uc}
}

func (e *ledgerEnv) adjust(t *testing.T, owner model.OwnerRef, delta int64, reason model.Reason) *model.InventoryRecord {
	t.Helper()
	rec, err := e.uc.AdjustQuantity(context.Background(), &dto.AdjustQuantityInput{
		Owner:  owner,
		Delta:  delta,
		Reason: reason,
	})
	require.NoError(t, err)
	return rec
}

func (e *ledgerEnv) record(t *testing.T, owner model.OwnerRef) *model.InventoryRecord {
	t.Helper()
	rec, err := e.repo.GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func (e *ledgerEnv) movementCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT count(*) FROM stock_movements`))
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.StockEvent
}

func (p *recordingPublisher) PublishStockEvent(_ context.Context, event *model.StockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []*model.StockEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.StockEvent(nil), p.events...)
}

type stubDirectory map[model.OwnerRef]bool

func (d stubDirectory) Exists(_ context.Context, owner model.OwnerRef) (bool, error) {
	return d[owner], nil
}
