package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvStudio/internal/database"
)

// TagHandler 负责模板标签的管理与绑定。
type TagHandler struct {
	db *gorm.DB
}

// NewTagHandler 构造 TagHandler。
func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{db: db}
}

type tagRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

type tagResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateTag 新建标签；slug 缺省时由名称派生。
func (h *TagHandler) CreateTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}

	record := database.Tag{Name: req.Name, Slug: slug}
	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "tag already exists")
			return
		}
		Internal(c, "failed to create tag")
		return
	}
	c.JSON(http.StatusCreated, tagResponse{ID: record.ID, Name: record.Name, Slug: record.Slug})
}

// ListTags 列出全部标签。
func (h *TagHandler) ListTags(c *gin.Context) {
	var records []database.Tag
	if err := h.db.WithContext(c.Request.Context()).
		Order("name ASC").
		Find(&records).Error; err != nil {
		Internal(c, "failed to list tags")
		return
	}

	items := make([]tagResponse, 0, len(records))
	for _, record := range records {
		items = append(items, tagResponse{ID: record.ID, Name: record.Name, Slug: record.Slug})
	}
	c.JSON(http.StatusOK, items)
}

// DeleteTag 删除标签并解除所有模板绑定。
func (h *TagHandler) DeleteTag(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid tag id")
		return
	}

	ctx := c.Request.Context()
	var record database.Tag
	if err := h.db.WithContext(ctx).First(&record, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "tag not found")
			return
		}
		Internal(c, "failed to query tag")
		return
	}

	if err := h.db.WithContext(ctx).Model(&record).Association("Templates").Clear(); err != nil {
		Internal(c, "failed to detach tag")
		return
	}
	if err := h.db.WithContext(ctx).Delete(&record).Error; err != nil {
		Internal(c, "failed to delete tag")
		return
	}
	c.Status(http.StatusNoContent)
}

type setTemplateTagsRequest struct {
	TagIDs []uint `json:"tag_ids" binding:"required"`
}

// SetTemplateTags 覆盖式设置模板的标签绑定。
func (h *TagHandler) SetTemplateTags(c *gin.Context) {
	var req setTemplateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := loadTemplateByParam(c, h.db)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	ctx := c.Request.Context()
	var tags []database.Tag
	if len(req.TagIDs) > 0 {
		if err := h.db.WithContext(ctx).Find(&tags, req.TagIDs).Error; err != nil {
			Internal(c, "failed to query tags")
			return
		}
		if len(tags) != len(req.TagIDs) {
			BadRequest(c, "unknown tag id in list")
			return
		}
	}

	if err := h.db.WithContext(ctx).Model(record).Association("Tags").Replace(tags); err != nil {
		Internal(c, "failed to set template tags")
		return
	}

	items := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		items = append(items, tagResponse{ID: tag.ID, Name: tag.Name, Slug: tag.Slug})
	}
	c.JSON(http.StatusOK, gin.H{"template_id": record.ID, "tags": items})
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}
