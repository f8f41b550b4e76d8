package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"xuangu/backtest"
	"xuangu/trading"
)

// Scanner 选股执行器，*backtest.Runner 实现了它
type Scanner interface {
	Scan(ctx context.Context, cfg backtest.RunConfig, fast bool) (*backtest.Report, error)
}

// SignalStore 保存监控列表最近一次选股结果
type SignalStore struct {
	mu      sync.RWMutex
	report  *backtest.Report
	updated time.Time
	lastErr string
}

// NewSignalStore 创建空的结果缓存
func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

// Set 保存选股结果
func (s *SignalStore) Set(rep *backtest.Report, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = rep
	s.updated = at
	s.lastErr = ""
}

func (s *SignalStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
}

// Latest 返回最近一次结果；还没跑过时 report 为 nil
func (s *SignalStore) Latest() (*backtest.Report, time.Time, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.updated, s.lastErr
}

// SyncOptions 定时选股参数，Interval 为 0 时用默认间隔
type SyncOptions struct {
	Logger   *zap.Logger
	Interval time.Duration
	// 测试时注入
	Now func() time.Time
}

// RunSignalSync 启动后立即跑一次，之后只在报价时段内按间隔刷新，ctx 取消时退出
func RunSignalSync(ctx context.Context, cfg backtest.RunConfig, sc Scanner, store *SignalStore, opt SyncOptions) {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	interval := opt.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if len(cfg.Universe) == 0 {
		logger.Info("monitor disabled: no stocks configured")
		return
	}

	logger.Info("monitor initial scan", zap.Int("stocks", len(cfg.Universe)))
	RefreshOnce(ctx, cfg, sc, store, logger, now)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("monitor stop")
			return
		case <-ticker.C:
			if !trading.ShouldMergeQuoteAt(now()) {
				logger.Debug("monitor skipped: market closed")
				continue
			}
			RefreshOnce(ctx, cfg, sc, store, logger, now)
		}
	}
}

// RefreshOnce 跑一次选股并写入 store，失败时保留上一次结果
func RefreshOnce(ctx context.Context, cfg backtest.RunConfig, sc Scanner, store *SignalStore, logger *zap.Logger, now func() time.Time) {
	rep, err := sc.Scan(ctx, cfg, false)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("monitor scan failed", zap.Error(err))
		}
		store.setError(err)
		return
	}
	store.Set(rep, now())

	var hits []string
	for _, r := range rep.Scan {
		if r.Signal {
			hits = append(hits, r.Symbol)
		}
	}
	logger.Info("monitor updated",
		zap.String("run_id", rep.RunID),
		zap.Int("stocks", rep.Summary.Instruments),
		zap.Int("failed", rep.Summary.Failed),
		zap.Strings("signals", hits),
	)
}
