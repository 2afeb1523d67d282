package status

// ChannelStatus 單一通道的即時狀態
type ChannelStatus struct {
	Name            string `json:"name" example:"delivery_partner"`
	Target          string `json:"target" example:"wss://realtime.palenque.app/ws"`
	Connected       bool   `json:"connected" example:"true"`
	Reconnects      int64  `json:"reconnects" example:"2"`
	LastConnectedAt int64  `json:"last_connected_at,omitempty" example:"1756700000000"`
}

// RefreshFlagStatus 刷新旗標的即時狀態
type RefreshFlagStatus struct {
	Name   string `json:"name" example:"seller_orders"`
	Active bool   `json:"active" example:"false"`
}

// LocationStatus 定位追蹤的即時狀態
type LocationStatus struct {
	State     string   `json:"state" example:"watching"`
	Latitude  *float64 `json:"latitude,omitempty" example:"14.6091"`
	Longitude *float64 `json:"longitude,omitempty" example:"121.0223"`
}

// RealtimeStatusResponse 即時核心的整體狀態快照
type RealtimeStatusResponse struct {
	Body struct {
		Channels     []ChannelStatus     `json:"channels"`
		RefreshFlags []RefreshFlagStatus `json:"refresh_flags"`
		Location     *LocationStatus     `json:"location,omitempty"`
	}
}

// HealthResponse 健康檢查回應
type HealthResponse struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Message string `json:"message" example:"服務運行正常"`
	}
}
