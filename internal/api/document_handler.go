package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvStudio/internal/database"
)

// DocumentHandler 以同一套生命周期服务三种文档
// （简历/CV/求职信列结构一致，仅表名不同）。
type DocumentHandler struct {
	db      *gorm.DB
	table   string
	kind    string
	maxDocs int
}

// NewResumeHandler 构造简历文档处理器。
func NewResumeHandler(db *gorm.DB, maxDocs int) *DocumentHandler {
	return &DocumentHandler{db: db, table: database.Resume{}.TableName(), kind: "resume", maxDocs: maxDocs}
}

// NewCVHandler 构造 CV 文档处理器。
func NewCVHandler(db *gorm.DB, maxDocs int) *DocumentHandler {
	return &DocumentHandler{db: db, table: database.CV{}.TableName(), kind: "cv", maxDocs: maxDocs}
}

// NewCoverLetterHandler 构造求职信文档处理器。
func NewCoverLetterHandler(db *gorm.DB, maxDocs int) *DocumentHandler {
	return &DocumentHandler{db: db, table: database.CoverLetter{}.TableName(), kind: "cover_letter", maxDocs: maxDocs}
}

var errInvalidDocumentID = errors.New("invalid document id")

// documentRow 是三张文档表共用的行结构。
type documentRow struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
	Title      string
	Content    datatypes.JSON
	TemplateID *uint
	VariantID  string
	Version    int
	UserID     uint
}

type createDocumentRequest struct {
	Title      string         `json:"title" binding:"required"`
	Content    datatypes.JSON `json:"content" binding:"required"`
	TemplateID *uint          `json:"template_id"`
	VariantID  string         `json:"variant_id"`
}

type updateDocumentRequest struct {
	Title      *string         `json:"title"`
	Content    *datatypes.JSON `json:"content"`
	TemplateID *uint           `json:"template_id"`
	VariantID  *string         `json:"variant_id"`
}

type documentListItem struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	TemplateID *uint     `json:"template_id,omitempty"`
	Version    int       `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type documentResponse struct {
	ID         uint           `json:"id"`
	Title      string         `json:"title"`
	Content    datatypes.JSON `json:"content"`
	TemplateID *uint          `json:"template_id,omitempty"`
	VariantID  string         `json:"variant_id,omitempty"`
	Version    int            `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateDocument 保存一份新文档，超过限额则提示升级。
// template_id 可空（空白文档）；给定时必须指向已发布模板，
// variant_id 给定时必须存在于该模板的变体集合中。
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()

	var count int64
	if err := h.db.WithContext(ctx).Table(h.table).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count documents")
		return
	}
	if h.maxDocs > 0 && count >= int64(h.maxDocs) {
		Forbidden(c, h.kind+" limit reached")
		return
	}

	if req.TemplateID != nil {
		if ok := h.validateTemplateRef(c, *req.TemplateID, req.VariantID); !ok {
			return
		}
	} else if req.VariantID != "" {
		BadRequest(c, "variant_id requires template_id")
		return
	}

	row := documentRow{
		Title:      req.Title,
		Content:    req.Content,
		TemplateID: req.TemplateID,
		VariantID:  req.VariantID,
		Version:    1,
		UserID:     userID,
	}
	if err := h.db.WithContext(ctx).Table(h.table).Create(&row).Error; err != nil {
		Internal(c, "failed to create "+h.kind)
		return
	}

	c.JSON(http.StatusCreated, newDocumentResponse(row))
}

// ListDocuments 列出用户全部文档。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var rows []documentRow
	if err := h.db.WithContext(c.Request.Context()).Table(h.table).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to list documents")
		return
	}

	items := make([]documentListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, documentListItem{
			ID:         row.ID,
			Title:      row.Title,
			TemplateID: row.TemplateID,
			Version:    row.Version,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GetDocument 返回指定 ID 的文档。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	row, err := h.getForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(*row))
}

// GetLatestDocument 返回最近更新的一份文档；没有则 404。
func (h *DocumentHandler) GetLatestDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var row documentRow
	err := h.db.WithContext(c.Request.Context()).Table(h.table).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "no "+h.kind+" yet")
			return
		}
		Internal(c, "failed to query latest document")
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(row))
}

// UpdateDocument 应用补丁并递增版本号。
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	row, err := h.getForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		if *req.Title == "" {
			BadRequest(c, "title must not be empty")
			return
		}
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.TemplateID != nil {
		variantID := row.VariantID
		if req.VariantID != nil {
			variantID = *req.VariantID
		}
		if ok := h.validateTemplateRef(c, *req.TemplateID, variantID); !ok {
			return
		}
		updates["template_id"] = *req.TemplateID
	} else if req.VariantID != nil && *req.VariantID != "" {
		// 只改 variant 时按文档当前绑定的模板校验。
		if row.TemplateID == nil {
			BadRequest(c, "variant_id requires a template")
			return
		}
		if ok := h.validateTemplateRef(c, *row.TemplateID, *req.VariantID); !ok {
			return
		}
	}
	if req.VariantID != nil {
		updates["variant_id"] = *req.VariantID
	}
	if len(updates) == 0 {
		BadRequest(c, "empty patch")
		return
	}
	updates["version"] = gorm.Expr("version + 1")

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Table(h.table).
		Where("id = ?", row.ID).
		Updates(updates).Error; err != nil {
		Internal(c, "failed to update "+h.kind)
		return
	}
	if err := h.db.WithContext(ctx).Table(h.table).
		Where("id = ?", row.ID).
		First(row).Error; err != nil {
		Internal(c, "failed to reload "+h.kind)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(*row))
}

// DuplicateDocument 复制一份文档（标题加后缀，版本重置为 1）。
func (h *DocumentHandler) DuplicateDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	source, err := h.getForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	var count int64
	if err := h.db.WithContext(ctx).Table(h.table).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count documents")
		return
	}
	if h.maxDocs > 0 && count >= int64(h.maxDocs) {
		Forbidden(c, h.kind+" limit reached")
		return
	}

	copied := documentRow{
		Title:      source.Title + " (copy)",
		Content:    source.Content,
		TemplateID: source.TemplateID,
		VariantID:  source.VariantID,
		Version:    1,
		UserID:     userID,
	}
	if err := h.db.WithContext(ctx).Table(h.table).Create(&copied).Error; err != nil {
		Internal(c, "failed to duplicate "+h.kind)
		return
	}
	c.JSON(http.StatusCreated, newDocumentResponse(copied))
}

// DeleteDocument 软删除指定文档。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	row, err := h.getForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	if err := h.db.WithContext(ctx).Table(h.table).
		Where("id = ?", row.ID).
		Update("deleted_at", time.Now()).Error; err != nil {
		Internal(c, "failed to delete "+h.kind)
		return
	}
	c.Status(http.StatusNoContent)
}

// validateTemplateRef 校验模板引用：模板需已发布，变体需存在于集合内。
func (h *DocumentHandler) validateTemplateRef(c *gin.Context, templateID uint, variantID string) bool {
	var record database.Template
	err := h.db.WithContext(c.Request.Context()).First(&record, templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		BadRequest(c, "unknown template")
		return false
	}
	if err != nil {
		Internal(c, "failed to verify template")
		return false
	}
	if !record.IsPublished {
		BadRequest(c, "template is not published")
		return false
	}

	if variantID != "" {
		set, err := decodeVariantSet(&record)
		if err != nil {
			Internal(c, "failed to decode template variants")
			return false
		}
		found := false
		for _, variant := range set.Variants() {
			if variant.ID == variantID {
				found = true
				break
			}
		}
		if !found {
			BadRequest(c, "unknown variant for template")
			return false
		}
	}
	return true
}

func (h *DocumentHandler) getForUser(ctx context.Context, idParam string, userID uint) (*documentRow, error) {
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidDocumentID
	}

	var row documentRow
	if err := h.db.WithContext(ctx).Table(h.table).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", uint(id), userID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *DocumentHandler) respondLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidDocumentID):
		BadRequest(c, "invalid "+h.kind+" id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, h.kind+" not found")
	default:
		Internal(c, "failed to query "+h.kind)
	}
}

func newDocumentResponse(row documentRow) documentResponse {
	return documentResponse{
		ID:         row.ID,
		Title:      row.Title,
		Content:    row.Content,
		TemplateID: row.TemplateID,
		VariantID:  row.VariantID,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}
