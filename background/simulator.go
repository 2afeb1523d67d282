package background

import (
	"context"
	"time"

	"palenque-realtime/model"
	"palenque-realtime/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DemoDriver demo 模式的劇本驅動器：
// 模擬外送夥伴一天的操作（進入工作台、取得身份、
// app 切到後台再回前台、離開工作台），
// 用來在沒有行動端的情況下演練整個即時核心。
type DemoDriver struct {
	logger    zerolog.Logger
	partner   *service.DeliveryPartnerSession
	stateFeed *AppStateFeed
	partnerID string
}

// NewDemoDriver 建立劇本驅動器
func NewDemoDriver(logger zerolog.Logger, partner *service.DeliveryPartnerSession, stateFeed *AppStateFeed) *DemoDriver {
	return &DemoDriver{
		logger:    logger.With().Str("module", "demo_driver").Logger(),
		partner:   partner,
		stateFeed: stateFeed,
		partnerID: uuid.NewString(),
	}
}

// Start 執行劇本直到 ctx 取消。阻塞呼叫，通常以 goroutine 執行。
func (d *DemoDriver) Start(ctx context.Context) {
	d.logger.Info().Str("partner_id", d.partnerID).Msg("demo 劇本開始")

	steps := []struct {
		delay time.Duration
		name  string
		run   func()
	}{
		{1 * time.Second, "進入工作台", d.partner.EnterDashboard},
		{2 * time.Second, "身份取得", func() { d.partner.SetPartnerID(d.partnerID) }},
		{15 * time.Second, "app 切到後台", func() { d.stateFeed.Push(model.AppStateBackground) }},
		{5 * time.Second, "app 回到前台", func() { d.stateFeed.Push(model.AppStateActive) }},
		{15 * time.Second, "離開工作台", d.partner.ExitDashboard},
		{3 * time.Second, "再次進入工作台", d.partner.EnterDashboard},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("demo 劇本中止")
			return
		case <-time.After(step.delay):
		}
		d.logger.Info().Str("step", step.name).Msg("demo 劇本步驟")
		step.run()
	}

	d.logger.Info().Msg("demo 劇本完成，維持連線直到關閉")
	<-ctx.Done()
}
