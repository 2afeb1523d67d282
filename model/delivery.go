package model

import "encoding/json"

// DeliveryOffer 新配送機會的彈窗狀態。由 NEW_DELIVERY_AVAILABLE 訊息設置，
// 由使用者明確接受/拒絕後清除；payload 內容由伺服器決定，客戶端不解讀。
type DeliveryOffer struct {
	Visible bool            `json:"visible"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
