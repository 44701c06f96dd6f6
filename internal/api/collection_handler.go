package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvStudio/internal/database"
)

// CollectionHandler 负责管理员维护的模板合集。
type CollectionHandler struct {
	db *gorm.DB
}

// NewCollectionHandler 构造 CollectionHandler。
func NewCollectionHandler(db *gorm.DB) *CollectionHandler {
	return &CollectionHandler{db: db}
}

type collectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type collectionResponse struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TemplateCount int       `json:"template_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var errInvalidCollectionID = errors.New("invalid collection id")

// CreateCollection 新建合集。
func (h *CollectionHandler) CreateCollection(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	record := database.Collection{
		Name:        req.Name,
		Description: req.Description,
		UserID:      userID,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		Internal(c, "failed to create collection")
		return
	}
	c.JSON(http.StatusCreated, newCollectionResponse(record))
}

// ListCollections 列出全部合集。
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	var records []database.Collection
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Templates").
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		Internal(c, "failed to list collections")
		return
	}

	items := make([]collectionResponse, 0, len(records))
	for _, record := range records {
		items = append(items, newCollectionResponse(record))
	}
	c.JSON(http.StatusOK, items)
}

// GetCollection 返回合集详情，模板按列表视图输出。
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	record, err := h.loadCollection(c, true)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	templates := make([]gin.H, 0, len(record.Templates))
	for _, tpl := range record.Templates {
		templates = append(templates, gin.H{
			"id":                tpl.ID,
			"name":              tpl.Name,
			"category":          tpl.Category,
			"document_type":     tpl.DocumentType,
			"preview_image_url": tpl.PreviewImageURL,
			"is_published":      tpl.IsPublished,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          record.ID,
		"name":        record.Name,
		"description": record.Description,
		"templates":   templates,
	})
}

// UpdateCollection 覆盖更新名称与描述。
func (h *CollectionHandler) UpdateCollection(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.loadCollection(c, false)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	updates := map[string]any{
		"name":        req.Name,
		"description": req.Description,
	}
	if err := h.db.WithContext(c.Request.Context()).Model(record).Updates(updates).Error; err != nil {
		Internal(c, "failed to update collection")
		return
	}
	record.Name = req.Name
	record.Description = req.Description
	c.JSON(http.StatusOK, newCollectionResponse(*record))
}

// DeleteCollection 删除合集（模板本身不受影响）。
func (h *CollectionHandler) DeleteCollection(c *gin.Context) {
	record, err := h.loadCollection(c, false)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(record).Association("Templates").Clear(); err != nil {
		Internal(c, "failed to detach templates")
		return
	}
	if err := h.db.WithContext(ctx).Delete(record).Error; err != nil {
		Internal(c, "failed to delete collection")
		return
	}
	c.Status(http.StatusNoContent)
}

type collectionTemplatesRequest struct {
	TemplateIDs []uint `json:"template_ids" binding:"required,min=1"`
}

// AddTemplates 向合集追加模板。
func (h *CollectionHandler) AddTemplates(c *gin.Context) {
	var req collectionTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.loadCollection(c, false)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	ctx := c.Request.Context()
	var templates []database.Template
	if err := h.db.WithContext(ctx).Find(&templates, req.TemplateIDs).Error; err != nil {
		Internal(c, "failed to query templates")
		return
	}
	if len(templates) != len(req.TemplateIDs) {
		BadRequest(c, "unknown template id in list")
		return
	}

	if err := h.db.WithContext(ctx).Model(record).Association("Templates").Append(&templates); err != nil {
		Internal(c, "failed to add templates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection_id": record.ID, "added": len(templates)})
}

// RemoveTemplate 将模板从合集中移除。
func (h *CollectionHandler) RemoveTemplate(c *gin.Context) {
	record, err := h.loadCollection(c, false)
	if err != nil {
		h.respondLoadError(c, err)
		return
	}

	templateID, err := strconv.ParseUint(c.Param("templateId"), 10, 64)
	if err != nil || templateID == 0 {
		BadRequest(c, "invalid template id")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(record).
		Association("Templates").
		Delete(&database.Template{Model: gorm.Model{ID: uint(templateID)}}); err != nil {
		Internal(c, "failed to remove template")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CollectionHandler) loadCollection(c *gin.Context, withTemplates bool) (*database.Collection, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidCollectionID
	}

	query := h.db.WithContext(c.Request.Context())
	if withTemplates {
		query = query.Preload("Templates")
	}

	var record database.Collection
	if err := query.First(&record, uint(id)).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (h *CollectionHandler) respondLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidCollectionID):
		BadRequest(c, "invalid collection id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "collection not found")
	default:
		Internal(c, "failed to query collection")
	}
}

func newCollectionResponse(record database.Collection) collectionResponse {
	return collectionResponse{
		ID:            record.ID,
		Name:          record.Name,
		Description:   record.Description,
		TemplateCount: len(record.Templates),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}
