package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/template"
)

// SampleContentHandler 负责示例内容库与模板显式映射的管理。
type SampleContentHandler struct {
	db *gorm.DB
}

// NewSampleContentHandler 构造 SampleContentHandler。
func NewSampleContentHandler(db *gorm.DB) *SampleContentHandler {
	return &SampleContentHandler{db: db}
}

type sampleContentRequest struct {
	ContentType     string         `json:"content_type" binding:"required"`
	Content         map[string]any `json:"content" binding:"required"`
	Industries      []string       `json:"industries"`
	Specializations []string       `json:"specializations"`
	JobTitles       []string       `json:"job_titles"`
	ExperienceLevel string         `json:"experience_level"`
	Quality         int            `json:"quality"`
	Source          string         `json:"source"`
	IsActive        *bool          `json:"is_active"`
	IsApproved      *bool          `json:"is_approved"`
}

type sampleContentResponse struct {
	ID              uint           `json:"id"`
	ContentType     string         `json:"content_type"`
	Content         map[string]any `json:"content"`
	Industries      []string       `json:"industries,omitempty"`
	Specializations []string       `json:"specializations,omitempty"`
	JobTitles       []string       `json:"job_titles,omitempty"`
	ExperienceLevel string         `json:"experience_level,omitempty"`
	Quality         int            `json:"quality"`
	Source          string         `json:"source,omitempty"`
	IsActive        bool           `json:"is_active"`
	IsApproved      bool           `json:"is_approved"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CreateSampleContent 新增示例内容条目。
func (h *SampleContentHandler) CreateSampleContent(c *gin.Context) {
	var req sampleContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !template.ValidSectionType(template.SectionType(req.ContentType)) {
		BadRequest(c, "invalid content type")
		return
	}

	record := database.SampleContentItem{
		ContentType:     req.ContentType,
		Content:         mustJSON(req.Content),
		Industries:      mustJSON(req.Industries),
		Specializations: mustJSON(req.Specializations),
		JobTitles:       mustJSON(req.JobTitles),
		ExperienceLevel: req.ExperienceLevel,
		Quality:         req.Quality,
		Source:          req.Source,
		IsActive:        true,
	}
	if req.IsActive != nil {
		record.IsActive = *req.IsActive
	}
	if req.IsApproved != nil {
		record.IsApproved = *req.IsApproved
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		Internal(c, "failed to create sample content")
		return
	}
	c.JSON(http.StatusCreated, newSampleContentResponse(record))
}

// ListSampleContent 按类型/状态筛选列出条目。
func (h *SampleContentHandler) ListSampleContent(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&database.SampleContentItem{})
	if contentType := c.Query("content_type"); contentType != "" {
		query = query.Where("content_type = ?", contentType)
	}
	if approved := c.Query("approved"); approved != "" {
		query = query.Where("is_approved = ?", approved == "true")
	}

	var records []database.SampleContentItem
	if err := query.Order("quality DESC, id ASC").Find(&records).Error; err != nil {
		Internal(c, "failed to list sample content")
		return
	}

	items := make([]sampleContentResponse, 0, len(records))
	for _, record := range records {
		items = append(items, newSampleContentResponse(record))
	}
	c.JSON(http.StatusOK, items)
}

// UpdateSampleContent 覆盖更新条目。
func (h *SampleContentHandler) UpdateSampleContent(c *gin.Context) {
	var req sampleContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !template.ValidSectionType(template.SectionType(req.ContentType)) {
		BadRequest(c, "invalid content type")
		return
	}

	record, err := h.loadItem(c)
	if err != nil {
		respondSampleContentLoadError(c, err)
		return
	}

	updates := map[string]any{
		"content_type":     req.ContentType,
		"content":          mustJSON(req.Content),
		"industries":       mustJSON(req.Industries),
		"specializations":  mustJSON(req.Specializations),
		"job_titles":       mustJSON(req.JobTitles),
		"experience_level": req.ExperienceLevel,
		"quality":          req.Quality,
		"source":           req.Source,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsApproved != nil {
		updates["is_approved"] = *req.IsApproved
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		Internal(c, "failed to update sample content")
		return
	}
	if err := h.db.WithContext(ctx).First(record, record.ID).Error; err != nil {
		Internal(c, "failed to reload sample content")
		return
	}
	c.JSON(http.StatusOK, newSampleContentResponse(*record))
}

// DeleteSampleContent 软删除条目。
func (h *SampleContentHandler) DeleteSampleContent(c *gin.Context) {
	record, err := h.loadItem(c)
	if err != nil {
		respondSampleContentLoadError(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Delete(&database.SampleContentItem{}, record.ID).Error; err != nil {
		Internal(c, "failed to delete sample content")
		return
	}
	c.Status(http.StatusNoContent)
}

type setSectionMappingRequest struct {
	ContentIDs []uint `json:"content_ids" binding:"required"`
}

// SetSectionMapping 设置模板区块的显式示例内容映射。
// content_ids 为空数组时等同于移除映射。
func (h *SampleContentHandler) SetSectionMapping(c *gin.Context) {
	var req setSectionMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := loadTemplateByParam(c, h.db)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	sections, err := decodeStructure(record)
	if err != nil {
		Internal(c, "failed to decode template structure")
		return
	}
	sectionID := c.Param("sectionId")
	found := false
	for _, section := range sections {
		if section.ID == sectionID {
			found = true
			break
		}
	}
	if !found {
		NotFound(c, "section not found")
		return
	}

	// 映射指向的内容必须真实存在，避免悬挂引用。
	for _, contentID := range req.ContentIDs {
		var count int64
		if err := h.db.WithContext(c.Request.Context()).
			Model(&database.SampleContentItem{}).
			Where("id = ?", contentID).
			Count(&count).Error; err != nil {
			Internal(c, "failed to verify sample content")
			return
		}
		if count == 0 {
			BadRequest(c, "unknown sample content id "+strconv.FormatUint(uint64(contentID), 10))
			return
		}
	}

	mapping, err := decodeSampleContentMap(record)
	if err != nil {
		Internal(c, "failed to decode sample content map")
		return
	}
	if len(req.ContentIDs) == 0 {
		delete(mapping, sectionID)
	} else {
		mapping[sectionID] = req.ContentIDs
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(record).
		Update("specific_sample_content", mustJSON(mapping)).Error; err != nil {
		Internal(c, "failed to save sample content map")
		return
	}
	c.JSON(http.StatusOK, gin.H{"section_id": sectionID, "content_ids": req.ContentIDs})
}

func (h *SampleContentHandler) loadItem(c *gin.Context) (*database.SampleContentItem, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidSampleContentID
	}

	var record database.SampleContentItem
	if err := h.db.WithContext(c.Request.Context()).First(&record, uint(id)).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

var errInvalidSampleContentID = errors.New("invalid sample content id")

func respondSampleContentLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidSampleContentID):
		BadRequest(c, "invalid sample content id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "sample content not found")
	default:
		Internal(c, "failed to query sample content")
	}
}

func newSampleContentResponse(record database.SampleContentItem) sampleContentResponse {
	resp := sampleContentResponse{
		ID:              record.ID,
		ContentType:     record.ContentType,
		Industries:      decodeStringList(record.Industries),
		Specializations: decodeStringList(record.Specializations),
		JobTitles:       decodeStringList(record.JobTitles),
		ExperienceLevel: record.ExperienceLevel,
		Quality:         record.Quality,
		Source:          record.Source,
		IsActive:        record.IsActive,
		IsApproved:      record.IsApproved,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	if len(record.Content) > 0 {
		_ = json.Unmarshal(record.Content, &resp.Content)
	}
	return resp
}
