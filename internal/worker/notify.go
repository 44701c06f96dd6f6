package worker

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type PreviewNotifyMessage struct {
	Status        string `json:"status"`
	TemplateID    uint   `json:"template_id"`
	VariantID     string `json:"variant_id,omitempty"`
	PreviewURL    string `json:"preview_url,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
