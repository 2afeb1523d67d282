package websocket

// WebSocket 訊息類型常量
const (
	// 入站類型（伺服器 → 客戶端）
	MessageTypeRefreshUserConversations            = "REFRESH_USER_CONVERSATIONS"
	MessageTypeRefreshSellerOrders                 = "REFRESH_SELLER_ORDERS"
	MessageTypeRefreshSellerConversations          = "REFRESH_SELLER_CONVERSATIONS"
	MessageTypeRefreshDeliveryPartnerOrders        = "REFRESH_DELIVERY_PARTNER_ORDERS"
	MessageTypeRefreshDeliveryPartnerConversations = "REFRESH_DELIVERY_PARTNER_CONVERSATIONS"
	MessageTypeNewDeliveryAvailable                = "NEW_DELIVERY_AVAILABLE"
	MessageTypeDeliveryPartnerLocationUpdate       = "delivery_partner_location_update"

	// 出站類型（客戶端 → 伺服器）
	MessageTypeDeliveryPartnerLocation = "delivery_partner_location"
	MessageTypeSellerUserData          = "seller_user_data"
	MessageTypeTrackDeliveryPartner    = "track_delivery_partner"
)

// ConnectionStatus WebSocket 連線狀態
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting"
)
