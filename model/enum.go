package model

// Role 使用者角色（消費者 / 賣家 / 外送夥伴）
type Role string

const (
	RoleConsumer        Role = "consumer"         // 消費者
	RoleSeller          Role = "seller"           // 賣家
	RoleDeliveryPartner Role = "delivery_partner" // 外送夥伴
)

// AppState 前台/背景狀態（對應行動端 AppState 事件）
type AppState string

const (
	AppStateActive     AppState = "active"     // 前台
	AppStateInactive   AppState = "inactive"   // 過渡狀態（切換中）
	AppStateBackground AppState = "background" // 背景
)

// IsForeground 是否為前台狀態
func (s AppState) IsForeground() bool {
	return s == AppStateActive
}

// TrackingState 定位追蹤生命週期狀態
type TrackingState string

const (
	TrackingStateIdle                 TrackingState = "idle"                  // 閒置
	TrackingStateRequestingPermission TrackingState = "requesting_permission" // 請求定位權限中
	TrackingStateWatching             TrackingState = "watching"              // 監聽定位中
)
