package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/metrics"
	"github.com/CaioWing/Arcade/internal/storage"
)

// StockSnapshotKey is the cache slot holding the last live stock view.
const StockSnapshotKey = "arcade:stock:snapshot"

// Tier names the layer that produced a stock view.
type Tier string

const (
	TierLive  Tier = "live"
	TierCache Tier = "cache"
	TierSeed  Tier = "seed"
)

type stockResult struct {
	items []domain.StockItem
	tier  Tier
}

// StockService serves the per-category availability view. Reads degrade from
// the live store to the cached snapshot to the embedded seed and never come
// back empty.
type StockService struct {
	store        *DeviceStore
	cache        storage.SnapshotStore
	catalog      domain.Catalog
	seed         []domain.StockItem
	fetchTimeout time.Duration
	metrics      *metrics.Metrics
	log          *zap.Logger

	group     singleflight.Group
	listeners *bus.Bus
	unsub     func()

	// stale holds at most one pending change signal for the refresh loop.
	stale    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.RWMutex
	last stockResult
}

type StockOptions struct {
	Catalog      domain.Catalog
	Seed         []domain.StockItem
	FetchTimeout time.Duration
}

// NewStockService builds the aggregator and, when changes is non-nil,
// subscribes it to change signals. Signals are coalesced: any number that
// arrive while a refresh is running produce one trailing refresh.
func NewStockService(
	store *DeviceStore,
	cache storage.SnapshotStore,
	changes *bus.Bus,
	opts StockOptions,
	m *metrics.Metrics,
	log *zap.Logger,
) *StockService {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	s := &StockService{
		store:        store,
		cache:        cache,
		catalog:      opts.Catalog,
		seed:         opts.Seed,
		fetchTimeout: opts.FetchTimeout,
		metrics:      m,
		log:          log,
		listeners:    bus.New(log),
	}
	if changes != nil {
		s.stale = make(chan struct{}, 1)
		s.stop = make(chan struct{})
		s.unsub = changes.Subscribe(s.markStale)
		go s.refreshLoop()
	}
	return s
}

// Close detaches the service from the change bus and stops its refresh loop.
func (s *StockService) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	if s.stop != nil {
		s.stopOnce.Do(func() { close(s.stop) })
	}
}

func (s *StockService) markStale() {
	select {
	case s.stale <- struct{}{}:
	default:
	}
}

func (s *StockService) refreshLoop() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.stale:
			s.Refresh(context.Background())
		}
	}
}

// Aggregate groups devices by normalized category. Lost devices are left out;
// Rented, Maintenance and Under-Repair devices count as rented. Items are
// sorted by ID.
func Aggregate(devices []*domain.Device, catalog domain.Catalog) []domain.StockItem {
	type group struct {
		raw           string
		total, rented int
	}
	groups := make(map[string]*group)

	for _, d := range devices {
		if d.Status == domain.DeviceStatusLost {
			continue
		}
		key := domain.CategoryKey(d.Category)
		g, ok := groups[key]
		if !ok {
			g = &group{raw: strings.TrimSpace(d.Category)}
			groups[key] = g
		}
		g.total++
		if d.Status.Unavailable() {
			g.rented++
		}
	}

	items := make([]domain.StockItem, 0, len(groups))
	for key, g := range groups {
		info := catalog.Lookup(key, g.raw)
		available := g.total - g.rented
		items = append(items, domain.StockItem{
			ID:                     key,
			Name:                   info.Name,
			Total:                  g.total,
			Rented:                 g.rented,
			Available:              available,
			LowStockAlert:          info.LowStockAlert,
			LowStock:               available <= info.LowStockAlert,
			MaxControllers:         info.MaxControllers,
			ExtraControllerEnabled: info.ExtraControllerEnabled,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Stock returns the current view and the tier that produced it. Concurrent
// callers share one fetch. The fetch is not tied to any single caller: if ctx
// ends first, the most recent view is returned while the fetch completes.
func (s *StockService) Stock(ctx context.Context) ([]domain.StockItem, Tier) {
	ch := s.group.DoChan("stock", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		res := s.load(fetchCtx)

		s.mu.Lock()
		s.last = res
		s.mu.Unlock()
		s.metrics.ObserveStockServed(string(res.tier))
		return res, nil
	})

	select {
	case r := <-ch:
		res := r.Val.(stockResult)
		return cloneStock(res.items), res.tier
	case <-ctx.Done():
		return s.Latest()
	}
}

// Latest returns the most recent view without fetching. Before the first
// fetch completes that is the seed.
func (s *StockService) Latest() ([]domain.StockItem, Tier) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if len(last.items) == 0 {
		return cloneStock(s.seed), TierSeed
	}
	return cloneStock(last.items), last.tier
}

// Refresh fetches and fans the result out to every subscriber.
func (s *StockService) Refresh(ctx context.Context) {
	s.Stock(ctx)
	s.listeners.Publish()
}

// Invalidate drops any in-flight fetch result and refreshes.
func (s *StockService) Invalidate(ctx context.Context) {
	s.group.Forget("stock")
	s.Refresh(ctx)
}

// Subscribe registers fn to receive every refreshed view. The subscription
// itself triggers a refresh, so fn has been called at least once by the time
// Subscribe returns.
func (s *StockService) Subscribe(fn func(items []domain.StockItem, tier Tier)) (unsubscribe func()) {
	unsub := s.listeners.Subscribe(func() {
		fn(s.Latest())
	})
	s.metrics.AddStockSubscribers(1)
	s.Refresh(context.Background())

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			s.metrics.AddStockSubscribers(-1)
		})
	}
}

// StartRefresher refreshes on a fixed interval until ctx is done. It keeps
// views current when no change feed is attached. Call in a goroutine.
func (s *StockService) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("stock refresher started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stock refresher stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *StockService) load(ctx context.Context) stockResult {
	if devices, ok := s.store.FetchAll(ctx); ok {
		if items := Aggregate(devices, s.catalog); len(items) > 0 {
			s.saveSnapshot(ctx, items)
			return stockResult{items: items, tier: TierLive}
		}
		s.log.Debug("live stock empty, using fallback")
	}

	if items, ok := s.loadSnapshot(ctx); ok {
		return stockResult{items: items, tier: TierCache}
	}
	return stockResult{items: cloneStock(s.seed), tier: TierSeed}
}

func (s *StockService) saveSnapshot(ctx context.Context, items []domain.StockItem) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.log.Warn("encode stock snapshot", zap.Error(err))
		return
	}
	if err := s.cache.Save(ctx, StockSnapshotKey, data); err != nil {
		s.log.Warn("save stock snapshot", zap.Error(err))
	}
}

func (s *StockService) loadSnapshot(ctx context.Context) ([]domain.StockItem, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Load(ctx, StockSnapshotKey)
	if err != nil {
		if !errors.Is(err, storage.ErrMiss) {
			s.log.Warn("load stock snapshot", zap.Error(err))
		}
		return nil, false
	}
	var items []domain.StockItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("decode stock snapshot", zap.Error(err))
		return nil, false
	}
	return items, len(items) > 0
}

func cloneStock(items []domain.StockItem) []domain.StockItem {
	out := make([]domain.StockItem, len(items))
	copy(out, items)
	return out
}
