package service

import (
	"context"
	"sync"
	"time"

	"palenque-realtime/model"
	"palenque-realtime/utils"

	"github.com/rs/zerolog"
)

// SimLocationProvider 模擬定位來源：沿固定方向等速移動。
// demo 模式與測試使用；行為與真實裝置一致，
// 包含最小移動距離過濾。
type SimLocationProvider struct {
	logger   zerolog.Logger
	start    model.LocationFix
	stepLat  float64 // 每次 tick 的緯度增量
	stepLng  float64
	interval time.Duration

	mu      sync.Mutex
	denied  bool
	current model.LocationFix
}

// NewSimLocationProvider 建立模擬定位來源
func NewSimLocationProvider(logger zerolog.Logger, startLat, startLng float64, interval time.Duration) *SimLocationProvider {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	start := model.NewLocationFix(startLat, startLng)
	return &SimLocationProvider{
		logger: logger.With().Str("module", "sim_location").Logger(),
		start:  start,
		// 約每 tick 往東北移動 15 公尺左右
		stepLat:  0.0001,
		stepLng:  0.0001,
		interval: interval,
		current:  start,
	}
}

// Deny 讓後續的權限請求被拒絕（測試用）
func (p *SimLocationProvider) Deny(denied bool) {
	p.mu.Lock()
	p.denied = denied
	p.mu.Unlock()
}

// RequestPermission 模擬權限請求
func (p *SimLocationProvider) RequestPermission(ctx context.Context) error {
	p.mu.Lock()
	denied := p.denied
	p.mu.Unlock()
	if denied {
		return ErrPermissionDenied
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Watch 開始模擬定位：每個 interval 前進一步，
// 與上一筆回報位置距離不足 MinDistanceM 的定位會被濾掉
func (p *SimLocationProvider) Watch(opts WatchOptions, fn func(model.LocationFix)) (func(), error) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.mu.Lock()
		last := p.current
		p.mu.Unlock()
		fn(last) // 首筆立即回報

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.mu.Lock()
				p.current = model.NewLocationFix(
					p.current.Latitude+p.stepLat,
					p.current.Longitude+p.stepLng,
				)
				next := p.current
				p.mu.Unlock()

				if utils.DistanceM(last.Latitude, last.Longitude, next.Latitude, next.Longitude) < opts.MinDistanceM {
					continue
				}
				last = next
				fn(next)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}
	return stop, nil
}
