package controller

import (
	"context"

	"palenque-realtime/data-models/status"
	"palenque-realtime/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// StatusController 即時核心的診斷端點
type StatusController struct {
	logger   zerolog.Logger
	consumer *service.ConsumerSession
	seller   *service.SellerSession
	partner  *service.DeliveryPartnerSession
}

func NewStatusController(logger zerolog.Logger, consumer *service.ConsumerSession, seller *service.SellerSession, partner *service.DeliveryPartnerSession) *StatusController {
	return &StatusController{
		logger:   logger.With().Str("module", "status_controller").Logger(),
		consumer: consumer,
		seller:   seller,
		partner:  partner,
	}
}

func (c *StatusController) RegisterRoutes(api huma.API) {
	// 健康檢查
	huma.Register(api, huma.Operation{
		OperationID: "health-check",
		Method:      "GET",
		Path:        "/health",
		Summary:     "健康檢查",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*status.HealthResponse, error) {
		resp := &status.HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Message = "Palenque 即時核心運行正常"
		return resp, nil
	})

	// 即時核心狀態快照
	huma.Register(api, huma.Operation{
		OperationID: "realtime-status",
		Method:      "GET",
		Path:        "/api/realtime/status",
		Summary:     "即時核心狀態",
		Description: "回報各角色通道的連線狀態、刷新旗標與定位追蹤狀態",
		Tags:        []string{"monitoring"},
	}, func(ctx context.Context, input *struct{}) (*status.RealtimeStatusResponse, error) {
		resp := &status.RealtimeStatusResponse{}
		resp.Body.Channels = c.channelStatuses()
		resp.Body.RefreshFlags = c.refreshStatuses()
		resp.Body.Location = c.locationStatus()
		return resp, nil
	})
}

func (c *StatusController) channelStatuses() []status.ChannelStatus {
	var out []status.ChannelStatus
	add := func(ch *service.ChannelService) {
		if ch == nil {
			return
		}
		stats := ch.Stats()
		entry := status.ChannelStatus{
			Name:       stats.Name,
			Target:     stats.Target,
			Connected:  stats.Connected,
			Reconnects: stats.Reconnects,
		}
		if !stats.LastConnected.IsZero() {
			entry.LastConnectedAt = stats.LastConnected.UnixMilli()
		}
		out = append(out, entry)
	}
	if c.consumer != nil {
		add(c.consumer.Channel())
	}
	if c.seller != nil {
		add(c.seller.Inbox())
		add(c.seller.Tracking())
	}
	if c.partner != nil {
		add(c.partner.Channel())
	}
	return out
}

func (c *StatusController) refreshStatuses() []status.RefreshFlagStatus {
	var out []status.RefreshFlagStatus
	add := func(name string, f *service.RefreshFlag) {
		if f == nil {
			return
		}
		out = append(out, status.RefreshFlagStatus{Name: name, Active: f.Active()})
	}
	if c.consumer != nil {
		add("consumer_conversations", c.consumer.ConversationsRefresh())
	}
	if c.seller != nil {
		add("seller_orders", c.seller.OrdersRefresh())
		add("seller_conversations", c.seller.ConversationsRefresh())
	}
	if c.partner != nil {
		add("delivery_partner_orders", c.partner.OrdersRefresh())
		add("delivery_partner_conversations", c.partner.ConversationsRefresh())
	}
	return out
}

func (c *StatusController) locationStatus() *status.LocationStatus {
	if c.partner == nil || c.partner.Location() == nil {
		return nil
	}
	loc := c.partner.Location()
	out := &status.LocationStatus{State: string(loc.State())}
	if fix := loc.LastFix(); fix != nil {
		out.Latitude = &fix.Latitude
		out.Longitude = &fix.Longitude
	}
	return out
}
