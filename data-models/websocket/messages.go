package websocket

import (
	"encoding/json"

	"palenque-realtime/model"
)

// InboundFrame 伺服器推送的訊息。以 type 欄位區分種類；
// 未使用的欄位保持原始 JSON，由各角色的路由自行解讀。
// 未識別的 type 一律忽略（向前相容）。
type InboundFrame struct {
	Type                    string          `json:"type"`
	Data                    json.RawMessage `json:"data,omitempty"`
	Message                 string          `json:"message,omitempty"`
	DeliveryPartnerLocation json.RawMessage `json:"deliveryPartnerLocation,omitempty"`
}

// DeliveryPartnerLocationFrame 外送夥伴定位上報（客戶端 → 伺服器，盡力而為，不等待回應）
type DeliveryPartnerLocationFrame struct {
	Type              string            `json:"type"`
	DeliveryPartnerID string            `json:"deliveryPartnerId"`
	Location          model.LocationFix `json:"location"`
}

// NewDeliveryPartnerLocationFrame 建立定位上報訊息
func NewDeliveryPartnerLocationFrame(partnerID string, fix model.LocationFix) DeliveryPartnerLocationFrame {
	return DeliveryPartnerLocationFrame{
		Type:              MessageTypeDeliveryPartnerLocation,
		DeliveryPartnerID: partnerID,
		Location:          fix,
	}
}

// SellerUserDataFrame 賣家連線後的身份識別訊息
type SellerUserDataFrame struct {
	Type     string `json:"type"`
	SellerID string `json:"sellerId"`
}

// NewSellerUserDataFrame 建立賣家身份識別訊息
func NewSellerUserDataFrame(sellerID string) SellerUserDataFrame {
	return SellerUserDataFrame{
		Type:     MessageTypeSellerUserData,
		SellerID: sellerID,
	}
}

// TrackDeliveryPartnerFrame 賣家請求追蹤指定外送夥伴
type TrackDeliveryPartnerFrame struct {
	Type              string `json:"type"`
	DeliveryPartnerID string `json:"deliveryPartnerId"`
	SellerID          string `json:"sellerId"`
}

// NewTrackDeliveryPartnerFrame 建立追蹤請求訊息
func NewTrackDeliveryPartnerFrame(partnerID, sellerID string) TrackDeliveryPartnerFrame {
	return TrackDeliveryPartnerFrame{
		Type:              MessageTypeTrackDeliveryPartner,
		DeliveryPartnerID: partnerID,
		SellerID:          sellerID,
	}
}

// LocationUpdatePushFrame 伺服器推送給追蹤者的外送夥伴位置更新
type LocationUpdatePushFrame struct {
	Type                    string            `json:"type"`
	DeliveryPartnerLocation model.LocationFix `json:"deliveryPartnerLocation"`
}

// NewLocationUpdatePushFrame 建立位置更新推播訊息
func NewLocationUpdatePushFrame(fix model.LocationFix) LocationUpdatePushFrame {
	return LocationUpdatePushFrame{
		Type:                    MessageTypeDeliveryPartnerLocationUpdate,
		DeliveryPartnerLocation: fix,
	}
}
