package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeTemplatePreview = "template:preview"
)

// TemplatePreviewPayload 描述生成模板/变体预览图所需的最小信息。
// VariantID 为空时渲染模板默认变体并更新模板封面。
type TemplatePreviewPayload struct {
	TemplateID    uint   `json:"template_id"`
	VariantID     string `json:"variant_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplatePreviewTask 构造一个新的预览图生成任务。
func NewTemplatePreviewTask(templateID uint, variantID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{
		TemplateID:    templateID,
		VariantID:     variantID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload), nil
}
