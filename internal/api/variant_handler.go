package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/database"
	"cvStudio/internal/design"
	"cvStudio/internal/tasks"
	"cvStudio/internal/template"
)

// VariantHandler 负责模板变体集合的全部操作。
// 集合内嵌在模板的 JSONB 列里，每次操作都是读改写整列；
// 并发修改同一模板时后写覆盖先写（无乐观锁，已知限制）。
type VariantHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	asynqClient *asynq.Client
}

// NewVariantHandler 构造 VariantHandler。redis/asynq 允许为 nil（测试）。
func NewVariantHandler(db *gorm.DB, redisClient *redis.Client, asynqClient *asynq.Client) *VariantHandler {
	return &VariantHandler{
		db:          db,
		redisClient: redisClient,
		asynqClient: asynqClient,
	}
}

type createVariantRequest struct {
	Name            string               `json:"name" binding:"required"`
	Description     string               `json:"description"`
	VariantType     template.VariantType `json:"variant_type" binding:"required"`
	DesignOverrides design.Config        `json:"design_overrides"`
	SortOrder       int                  `json:"sort_order"`
	IsDefault       bool                 `json:"is_default"`
	IsPremium       bool                 `json:"is_premium"`
	PreviewImageURL string               `json:"preview_image_url"`
}

type duplicateVariantRequest struct {
	Name          string        `json:"name" binding:"required"`
	Modifications design.Config `json:"modifications"`
}

type reorderVariantsRequest struct {
	Order map[string]int `json:"order" binding:"required"`
}

type bulkUpdateVariantsRequest struct {
	VariantIDs []string              `json:"variant_ids" binding:"required,min=1"`
	Patch      template.VariantPatch `json:"patch"`
}

type bulkDeleteVariantsRequest struct {
	VariantIDs []string `json:"variant_ids" binding:"required,min=1"`
}

type listResolvedResponse struct {
	Variants       []template.ResolvedVariant `json:"variants"`
	DefaultVariant *template.ResolvedVariant  `json:"default_variant"`
}

// CreateVariant 在集合末尾新增变体。
func (h *VariantHandler) CreateVariant(c *gin.Context) {
	var req createVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	created, err := set.Create(template.Variant{
		Name:            req.Name,
		Description:     req.Description,
		VariantType:     req.VariantType,
		DesignOverrides: req.DesignOverrides,
		SortOrder:       req.SortOrder,
		IsDefault:       req.IsDefault,
		IsPremium:       req.IsPremium,
		PreviewImageURL: req.PreviewImageURL,
	})
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, created.ID, "variant_created")
	c.JSON(http.StatusCreated, created)
}

// UpdateVariant 按 ID 应用浅补丁。
func (h *VariantHandler) UpdateVariant(c *gin.Context) {
	var patch template.VariantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	updated, err := set.Update(c.Param("variantId"), patch)
	if err != nil {
		respondVariantError(c, err)
		return
	}

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, updated.ID, "variant_updated")
	c.JSON(http.StatusOK, updated)
}

// DeleteVariant 删除变体；删到默认变体时提升 sortOrder 最小的幸存者。
func (h *VariantHandler) DeleteVariant(c *gin.Context) {
	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	variantID := c.Param("variantId")
	if err := set.Delete(variantID); err != nil {
		respondVariantError(c, err)
		return
	}

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, variantID, "variant_deleted")
	c.Status(http.StatusNoContent)
}

// ReorderVariants 按映射更新 sortOrder；映射缺失的变体保持原值。
func (h *VariantHandler) ReorderVariants(c *gin.Context) {
	var req reorderVariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	set.Reorder(req.Order)

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, "", "variants_reordered")
	c.JSON(http.StatusOK, gin.H{"variants": set.Variants()})
}

// DuplicateVariant 复制变体，可附带一份 design 覆盖补丁。
func (h *VariantHandler) DuplicateVariant(c *gin.Context) {
	var req duplicateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	copied, err := set.Duplicate(c.Param("variantId"), req.Name, req.Modifications)
	if err != nil {
		respondVariantError(c, err)
		return
	}

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, copied.ID, "variant_duplicated")
	c.JSON(http.StatusCreated, copied)
}

// BulkUpdateVariants 对目标集内的变体应用同一份补丁。
// 补丁含 is_default=true 时，请求列表中最后一个命中的 ID 成为唯一默认。
func (h *VariantHandler) BulkUpdateVariants(c *gin.Context) {
	var req bulkUpdateVariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	matched := set.BulkUpdate(req.VariantIDs, req.Patch)

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, "", "variants_bulk_updated")
	c.JSON(http.StatusOK, gin.H{
		"matched":  matched,
		"variants": set.Variants(),
	})
}

// BulkDeleteVariants 批量删除：逐个执行，单条失败不阻断其余，
// 汇总每条的错误返回。
func (h *VariantHandler) BulkDeleteVariants(c *gin.Context) {
	var req bulkDeleteVariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	type itemResult struct {
		VariantID string `json:"variant_id"`
		Error     string `json:"error,omitempty"`
	}
	results := make([]itemResult, 0, len(req.VariantIDs))
	deleted := 0
	for _, id := range req.VariantIDs {
		result := itemResult{VariantID: id}
		if err := set.Delete(id); err != nil {
			result.Error = err.Error()
		} else {
			deleted++
		}
		results = append(results, result)
	}

	if !h.saveSet(c, record, set) {
		return
	}
	h.afterMutation(c, record.ID, "", "variants_bulk_deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "results": results})
}

// ListResolvedVariants 返回按 sortOrder 排序、附带完整解析配置的变体，
// 以及默认变体。结果缓存在 Redis，任何变体变更时失效。
func (h *VariantHandler) ListResolvedVariants(c *gin.Context) {
	record, set, ok := h.loadSet(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cacheKey := resolvedVariantsCacheKey(record.ID)
	if h.redisClient != nil {
		if cached, err := h.redisClient.Get(ctx, cacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}
	}

	baseConfig, err := decodeDesignConfig(record)
	if err != nil {
		Internal(c, "failed to decode design config")
		return
	}

	resolved, defaultVariant := set.SortedResolved(baseConfig)
	response := listResolvedResponse{
		Variants:       resolved,
		DefaultVariant: defaultVariant,
	}

	if h.redisClient != nil {
		if raw, err := json.Marshal(response); err == nil {
			_ = h.redisClient.Set(ctx, cacheKey, raw, resolvedVariantsTTL).Err()
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *VariantHandler) loadSet(c *gin.Context) (*database.Template, *template.Set, bool) {
	record, err := loadTemplateByParam(c, h.db)
	if err != nil {
		respondTemplateLoadError(c, err)
		return nil, nil, false
	}
	set, err := decodeVariantSet(record)
	if err != nil {
		Internal(c, "failed to decode template variants")
		return nil, nil, false
	}
	return record, set, true
}

func (h *VariantHandler) saveSet(c *gin.Context, record *database.Template, set *template.Set) bool {
	raw, err := encodeVariantSet(set)
	if err != nil {
		Internal(c, "failed to encode variants")
		return false
	}
	if err := h.db.WithContext(c.Request.Context()).
		Model(record).
		Update("variants", raw).Error; err != nil {
		Internal(c, "failed to save variants")
		return false
	}
	return true
}

// afterMutation 统一处理变更后的缓存失效、事件推送与预览任务入队。
func (h *VariantHandler) afterMutation(c *gin.Context, templateID uint, variantID, event string) {
	ctx := c.Request.Context()
	invalidateResolvedVariants(ctx, h.redisClient, templateID)

	payload, _ := json.Marshal(gin.H{
		"event":          event,
		"template_id":    templateID,
		"variant_id":     variantID,
		"correlation_id": middleware.GetCorrelationID(c),
	})
	publishTemplateEvent(ctx, h.redisClient, templateID, payload)

	h.enqueuePreview(c, templateID, variantID)
}

func (h *VariantHandler) enqueuePreview(c *gin.Context, templateID uint, variantID string) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewTemplatePreviewTask(templateID, variantID, middleware.GetCorrelationID(c))
	if err != nil {
		middleware.LoggerFromContext(c).Error("build preview task failed", slog.Any("error", err))
		return
	}
	// 预览图是尽力而为的派生产物，入队失败只记日志。
	if _, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3)); err != nil {
		middleware.LoggerFromContext(c).Error("enqueue preview task failed", slog.Any("error", err))
	}
}

func respondVariantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, template.ErrVariantNotFound):
		NotFound(c, "variant not found")
	case errors.Is(err, template.ErrInvalidVariantType),
		errors.Is(err, template.ErrVariantNameEmpty):
		BadRequest(c, err.Error())
	default:
		Internal(c, "failed to apply variant operation")
	}
}
