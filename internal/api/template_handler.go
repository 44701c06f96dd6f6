package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/design"
	"cvStudio/internal/samplecontent"
	"cvStudio/internal/template"
)

// TemplateHandler 负责模板相关的 API。
// 管理端可增删改与发布，用户端只读已发布模板。
type TemplateHandler struct {
	db       *gorm.DB
	resolver *samplecontent.Resolver
}

// NewTemplateHandler 构造 TemplateHandler。
func NewTemplateHandler(db *gorm.DB, resolver *samplecontent.Resolver) *TemplateHandler {
	return &TemplateHandler{db: db, resolver: resolver}
}

var errInvalidTemplateID = errors.New("invalid template id")

type createTemplateRequest struct {
	Name            string             `json:"name" binding:"required"`
	Category        string             `json:"category"`
	DocumentType    string             `json:"document_type" binding:"required,oneof=resume cv cover_letter"`
	DesignConfig    design.Config      `json:"design_config"`
	Structure       []template.Section `json:"structure"`
	Industries      []string           `json:"industries"`
	Specializations []string           `json:"specializations"`
	JobTitles       []string           `json:"job_titles"`
	ExperienceLevel string             `json:"experience_level"`
	// IncludePresets 为 true 时套用内置的预置变体表。
	IncludePresets bool `json:"include_presets"`
}

type updateTemplateRequest struct {
	Name            *string             `json:"name"`
	Category        *string             `json:"category"`
	DesignConfig    *design.Config      `json:"design_config"`
	Structure       *[]template.Section `json:"structure"`
	Industries      *[]string           `json:"industries"`
	Specializations *[]string           `json:"specializations"`
	JobTitles       *[]string           `json:"job_titles"`
	ExperienceLevel *string             `json:"experience_level"`
}

type templateListItem struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	DocumentType    string    `json:"document_type"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	IsPublished     bool      `json:"is_published"`
	VariantCount    int       `json:"variant_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type templateDetailResponse struct {
	ID                    uint               `json:"id"`
	Name                  string             `json:"name"`
	Category              string             `json:"category"`
	DocumentType          string             `json:"document_type"`
	DesignConfig          design.Config      `json:"design_config"`
	Structure             []template.Section `json:"structure"`
	Variants              []template.Variant `json:"variants"`
	SpecificSampleContent map[string][]uint  `json:"specific_sample_content"`
	Industries            []string           `json:"industries,omitempty"`
	Specializations       []string           `json:"specializations,omitempty"`
	JobTitles             []string           `json:"job_titles,omitempty"`
	ExperienceLevel       string             `json:"experience_level,omitempty"`
	PreviewImageURL       string             `json:"preview_image_url,omitempty"`
	IsPublished           bool               `json:"is_published"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// CreateTemplate 创建模板（管理端）。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := template.ValidateStructure(req.Structure); err != nil {
		BadRequest(c, err.Error())
		return
	}

	set := template.NewSet(nil)
	if req.IncludePresets {
		if err := template.ApplyPresets(set); err != nil {
			Internal(c, "failed to apply preset variants")
			return
		}
	}
	variantsRaw, err := encodeVariantSet(set)
	if err != nil {
		Internal(c, "failed to encode variants")
		return
	}

	record := database.Template{
		Name:                  req.Name,
		Category:              req.Category,
		DocumentType:          req.DocumentType,
		DesignConfig:          mustJSON(req.DesignConfig),
		Structure:             mustJSON(req.Structure),
		Variants:              variantsRaw,
		SpecificSampleContent: datatypes.JSON([]byte("{}")),
		Industries:            mustJSON(req.Industries),
		Specializations:       mustJSON(req.Specializations),
		JobTitles:             mustJSON(req.JobTitles),
		ExperienceLevel:       req.ExperienceLevel,
		UserID:                userID,
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		Internal(c, "failed to create template")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": record.ID, "name": record.Name})
}

// ListTemplates 列表（管理端看全部，用户端只看已发布）。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	_, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&database.Template{})
	if role, _ := c.Get("userRole"); role != "admin" {
		query = query.Where("is_published = ?", true)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if docType := c.Query("document_type"); docType != "" {
		query = query.Where("document_type = ?", docType)
	}
	if tagSlug := c.Query("tag"); tagSlug != "" {
		query = query.
			Joins("JOIN template_tags ON template_tags.template_id = templates.id").
			Joins("JOIN tags ON tags.id = template_tags.tag_id").
			Where("tags.slug = ?", tagSlug)
	}

	var records []database.Template
	if err := query.Order("updated_at DESC").Find(&records).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(records))
	for i := range records {
		set, err := decodeVariantSet(&records[i])
		if err != nil {
			Internal(c, "failed to decode template variants")
			return
		}
		items = append(items, templateListItem{
			ID:              records[i].ID,
			Name:            records[i].Name,
			Category:        records[i].Category,
			DocumentType:    records[i].DocumentType,
			PreviewImageURL: records[i].PreviewImageURL,
			IsPublished:     records[i].IsPublished,
			VariantCount:    set.Len(),
			UpdatedAt:       records[i].UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GetTemplate 详情：管理端任意模板，用户端仅已发布。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	_, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	record, err := h.loadTemplate(c)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	if role, _ := c.Get("userRole"); role != "admin" && !record.IsPublished {
		Forbidden(c, "access denied")
		return
	}

	detail, err := templateDetail(record)
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateTemplate 更新模板基础信息、结构与设计配置（管理端）。
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.loadTemplate(c)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(c, "name must not be empty")
			return
		}
		updates["name"] = *req.Name
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.DesignConfig != nil {
		updates["design_config"] = mustJSON(*req.DesignConfig)
	}
	if req.Structure != nil {
		if err := template.ValidateStructure(*req.Structure); err != nil {
			BadRequest(c, err.Error())
			return
		}
		updates["structure"] = mustJSON(*req.Structure)
	}
	if req.Industries != nil {
		updates["industries"] = mustJSON(*req.Industries)
	}
	if req.Specializations != nil {
		updates["specializations"] = mustJSON(*req.Specializations)
	}
	if req.JobTitles != nil {
		updates["job_titles"] = mustJSON(*req.JobTitles)
	}
	if req.ExperienceLevel != nil {
		updates["experience_level"] = *req.ExperienceLevel
	}
	if len(updates) == 0 {
		BadRequest(c, "empty patch")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		Internal(c, "failed to update template")
		return
	}
	if err := h.db.WithContext(ctx).First(record, record.ID).Error; err != nil {
		Internal(c, "failed to reload template")
		return
	}

	detail, err := templateDetail(record)
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PublishTemplate 切换发布状态（管理端）。
func (h *TemplateHandler) PublishTemplate(c *gin.Context) {
	var req struct {
		IsPublished *bool `json:"is_published" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.loadTemplate(c)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(record).
		Update("is_published", *req.IsPublished).Error; err != nil {
		Internal(c, "failed to update publish state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": record.ID, "is_published": *req.IsPublished})
}

// DeleteTemplate 软删除模板（gorm.DeletedAt，不做物理删除）。
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	record, err := h.loadTemplate(c)
	if err != nil {
		respondTemplateLoadError(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Delete(&database.Template{}, record.ID).Error; err != nil {
		Internal(c, "failed to delete template")
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolveSectionSample 为单个区块解析示例内容（编辑器预览）。
// 无匹配时返回 200 + null，渲染方处理空态。
func (h *TemplateHandler) ResolveSectionSample(c *gin.Context) {
	record, err := h.loadTemplate(c)
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
	var section *template.Section
	for i := range sections {
		if sections[i].ID == sectionID {
			section = &sections[i]
			break
		}
	}
	if section == nil {
		NotFound(c, "section not found")
		return
	}

	view, err := templateResolverView(record)
	if err != nil {
		Internal(c, "failed to decode template targeting")
		return
	}

	item, err := h.resolver.Resolve(c.Request.Context(), view, *section)
	if err != nil {
		Internal(c, "failed to resolve sample content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"section_id": sectionID, "sample": item})
}

// GetPrintTemplateData 返回 Worker 渲染预览图所需的完整数据
// （内部端点，InternalSecretMiddleware 保护）。
func (h *TemplateHandler) GetPrintTemplateData(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		BadRequest(c, "invalid template id")
		return
	}

	var record database.Template
	if err := h.db.WithContext(c.Request.Context()).First(&record, uint(templateID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "template not found")
			return
		}
		Internal(c, "failed to load template")
		return
	}

	baseConfig, err := decodeDesignConfig(&record)
	if err != nil {
		Internal(c, "failed to decode design config")
		return
	}
	set, err := decodeVariantSet(&record)
	if err != nil {
		Internal(c, "failed to decode variants")
		return
	}
	sections, err := decodeStructure(&record)
	if err != nil {
		Internal(c, "failed to decode structure")
		return
	}

	resolved, defaultVariant := set.SortedResolved(baseConfig)

	variantID := c.Query("variant_id")
	chosen := defaultVariant
	if variantID != "" {
		chosen = nil
		for i := range resolved {
			if resolved[i].ID == variantID {
				chosen = &resolved[i]
				break
			}
		}
		if chosen == nil {
			NotFound(c, "variant not found")
			return
		}
	}

	payload := gin.H{
		"template_id":   record.ID,
		"name":          record.Name,
		"document_type": record.DocumentType,
		"structure":     sections,
	}
	if chosen != nil {
		payload["variant_id"] = chosen.ID
		payload["design_config"] = chosen.ComputedDesignConfig
	} else {
		payload["design_config"] = baseConfig
	}

	// 每个区块附带解析后的示例内容，预览页直接渲染。
	view, err := templateResolverView(&record)
	if err != nil {
		Internal(c, "failed to decode template targeting")
		return
	}
	samples := make(map[string]*samplecontent.Item, len(sections))
	for _, section := range sections {
		item, err := h.resolver.Resolve(c.Request.Context(), view, section)
		if err != nil {
			Internal(c, "failed to resolve sample content")
			return
		}
		samples[section.ID] = item
	}
	payload["samples"] = samples

	c.JSON(http.StatusOK, payload)
}

func (h *TemplateHandler) loadTemplate(c *gin.Context) (*database.Template, error) {
	return loadTemplateByParam(c, h.db)
}

func loadTemplateByParam(c *gin.Context, db *gorm.DB) (*database.Template, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidTemplateID
	}

	var record database.Template
	if err := db.WithContext(c.Request.Context()).First(&record, uint(id)).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func respondTemplateLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidTemplateID):
		BadRequest(c, "invalid template id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "template not found")
	default:
		Internal(c, "failed to query template")
	}
}

func templateDetail(record *database.Template) (templateDetailResponse, error) {
	cfg, err := decodeDesignConfig(record)
	if err != nil {
		return templateDetailResponse{}, err
	}
	set, err := decodeVariantSet(record)
	if err != nil {
		return templateDetailResponse{}, err
	}
	sections, err := decodeStructure(record)
	if err != nil {
		return templateDetailResponse{}, err
	}
	mapping, err := decodeSampleContentMap(record)
	if err != nil {
		return templateDetailResponse{}, err
	}

	return templateDetailResponse{
		ID:                    record.ID,
		Name:                  record.Name,
		Category:              record.Category,
		DocumentType:          record.DocumentType,
		DesignConfig:          cfg,
		Structure:             sections,
		Variants:              set.Variants(),
		SpecificSampleContent: mapping,
		Industries:            decodeStringList(record.Industries),
		Specializations:       decodeStringList(record.Specializations),
		JobTitles:             decodeStringList(record.JobTitles),
		ExperienceLevel:       record.ExperienceLevel,
		PreviewImageURL:       record.PreviewImageURL,
		IsPublished:           record.IsPublished,
		CreatedAt:             record.CreatedAt,
		UpdatedAt:             record.UpdatedAt,
	}, nil
}
