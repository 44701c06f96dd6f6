package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvStudio/internal/config"
	"cvStudio/internal/database"
	"cvStudio/internal/errcode"
	"cvStudio/internal/storage"
	"cvStudio/internal/tasks"
	"cvStudio/internal/template"
)

// TemplatePreviewHandler 负责模板/变体缩略图生成任务。
// 流程：内部接口拉取打印数据 -> 无头浏览器渲染 -> 截图 ->
// 上传 MinIO -> 回写预览 URL -> Redis 通知前端。
type TemplatePreviewHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	logger      *slog.Logger
	workerCfg   config.WorkerConfig
	secret      string
}

func NewTemplatePreviewHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	workerCfg config.WorkerConfig,
	internalSecret string,
) *TemplatePreviewHandler {
	return &TemplatePreviewHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		logger:      logger,
		workerCfg:   workerCfg,
		secret:      internalSecret,
	}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.Int("template_id", int(payload.TemplateID)),
		slog.String("variant_id", payload.VariantID),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	var record database.Template
	if err := h.db.WithContext(ctx).First(&record, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	previewURL, err := h.renderAndUpload(ctx, log, &record, payload.VariantID)
	if err != nil {
		h.publishNotify(ctx, record.ID, PreviewNotifyMessage{
			Status:        "failed",
			TemplateID:    record.ID,
			VariantID:     payload.VariantID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.RenderFailed,
			ErrorMessage:  "预览图生成失败",
		})
		return err
	}

	h.publishNotify(ctx, record.ID, PreviewNotifyMessage{
		Status:        "completed",
		TemplateID:    record.ID,
		VariantID:     payload.VariantID,
		PreviewURL:    previewURL,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	})

	log.Info("Template preview generation completed.")
	return nil
}

func (h *TemplatePreviewHandler) renderAndUpload(ctx context.Context, log *slog.Logger, record *database.Template, variantID string) (string, error) {
	printData, err := fetchTemplatePrintData(ctx, h.workerCfg.InternalAPIBaseURL, record.ID, variantID, h.secret)
	if err != nil {
		log.Error("fetch template print data failed", slog.Any("error", err))
		return "", err
	}

	targetURL := fmt.Sprintf(
		"%s/preview-template/%d?internal_token=%s",
		h.workerCfg.FrontendBaseURL,
		record.ID,
		url.QueryEscape(h.secret),
	)

	page, cleanup, err := renderFrontendPage(h.logger, targetURL, buildPrintDataInjectionScript(printData))
	if err != nil {
		log.Error("render preview page failed", slog.Any("error", err))
		return "", err
	}
	defer cleanup()

	const previewQuality = 80
	previewBytes, err := capturePreviewScreenshot(page, previewQuality)
	if err != nil {
		log.Error("capture preview screenshot failed", slog.Any("error", err))
		return "", err
	}

	objectName := previewObjectName(record.ID, variantID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/jpeg"); err != nil {
		log.Error("upload preview failed", slog.Any("error", err))
		return "", err
	}

	const presignTTL = 7 * 24 * time.Hour
	previewURL, err := h.storage.GeneratePresignedURL(ctx, objectName, presignTTL)
	if err != nil {
		log.Error("generate preview url failed", slog.Any("error", err))
		return "", err
	}

	if variantID == "" {
		if err := h.db.WithContext(ctx).
			Model(record).
			Update("preview_image_url", previewURL).Error; err != nil {
			log.Error("update template preview url failed", slog.Any("error", err))
			return "", err
		}
		return previewURL, nil
	}

	if err := h.updateVariantPreviewURL(ctx, record, variantID, previewURL); err != nil {
		log.Error("update variant preview url failed", slog.Any("error", err))
		return "", err
	}
	return previewURL, nil
}

// updateVariantPreviewURL 回写变体集合 JSONB 列里对应变体的预览 URL。
// 变体可能在任务排队期间被删除，此时静默跳过。
func (h *TemplatePreviewHandler) updateVariantPreviewURL(ctx context.Context, record *database.Template, variantID, previewURL string) error {
	var variants []template.Variant
	if len(record.Variants) > 0 {
		if err := json.Unmarshal(record.Variants, &variants); err != nil {
			return fmt.Errorf("decode variants: %w", err)
		}
	}

	found := false
	for i := range variants {
		if variants[i].ID == variantID {
			variants[i].PreviewImageURL = previewURL
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	raw, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}
	return h.db.WithContext(ctx).
		Model(record).
		Update("variants", raw).Error
}

func (h *TemplatePreviewHandler) publishNotify(ctx context.Context, templateID uint, notify PreviewNotifyMessage) {
	data, err := json.Marshal(notify)
	if err != nil {
		h.logger.Error("marshal preview notify failed", slog.Any("error", err))
		return
	}
	channel := fmt.Sprintf("template_events:%d", templateID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		h.logger.Error("publish preview notify failed", slog.String("channel", channel), slog.Any("error", err))
	}
}

func previewObjectName(templateID uint, variantID string) string {
	if variantID == "" {
		return fmt.Sprintf("thumbnails/template/%d/preview.jpg", templateID)
	}
	return fmt.Sprintf("thumbnails/template/%d/%s/preview.jpg", templateID, variantID)
}
