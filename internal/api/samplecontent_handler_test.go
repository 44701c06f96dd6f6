package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/template"
)

func newSampleContentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Template{}, &database.Tag{}, &database.SampleContentItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newSampleContentTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSampleContentHandler(db)

	router := gin.New()
	router.POST("/sample-content", h.CreateSampleContent)
	router.GET("/sample-content", h.ListSampleContent)
	router.PUT("/sample-content/:id", h.UpdateSampleContent)
	router.DELETE("/sample-content/:id", h.DeleteSampleContent)
	router.PUT("/templates/:id/sections/:sectionId/sample-content", h.SetSectionMapping)
	return router
}

func TestCreateSampleContent_RejectsUnknownContentType(t *testing.T) {
	db := newSampleContentTestDB(t)
	router := newSampleContentTestRouter(db)

	w := doJSON(t, router, http.MethodPost, "/sample-content", gin.H{
		"content_type": "hobbies",
		"content":      gin.H{"title": "x"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSetSectionMapping_ValidatesSectionAndContent(t *testing.T) {
	db := newSampleContentTestDB(t)
	router := newSampleContentTestRouter(db)

	item := database.SampleContentItem{
		ContentType: "experience",
		Content:     mustJSON(map[string]any{"title": "engineer"}),
		IsActive:    true,
		IsApproved:  true,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	record := database.Template{
		Name:         "Modern",
		DocumentType: "resume",
		UserID:       1,
		Structure: mustJSON([]template.Section{
			{ID: "exp", Name: "Experience", Type: template.SectionExperience, Order: 0},
		}),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	if w := doJSON(t, router, http.MethodPut, "/templates/1/sections/ghost/sample-content", gin.H{
		"content_ids": []uint{item.ID},
	}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown section got %d", w.Code)
	}

	if w := doJSON(t, router, http.MethodPut, "/templates/1/sections/exp/sample-content", gin.H{
		"content_ids": []uint{9999},
	}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for dangling content id got %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPut, "/templates/1/sections/exp/sample-content", gin.H{
		"content_ids": []uint{item.ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Template
	if err := db.First(&reloaded, 1).Error; err != nil {
		t.Fatalf("reload template: %v", err)
	}
	var mapping map[string][]uint
	if err := json.Unmarshal(reloaded.SpecificSampleContent, &mapping); err != nil {
		t.Fatalf("decode mapping: %v", err)
	}
	if len(mapping["exp"]) != 1 || mapping["exp"][0] != item.ID {
		t.Fatalf("unexpected mapping: %+v", mapping)
	}

	// 空数组等同于移除映射。
	if w := doJSON(t, router, http.MethodPut, "/templates/1/sections/exp/sample-content", gin.H{
		"content_ids": []uint{},
	}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if err := db.First(&reloaded, 1).Error; err != nil {
		t.Fatalf("reload template: %v", err)
	}
	mapping = nil
	if err := json.Unmarshal(reloaded.SpecificSampleContent, &mapping); err != nil {
		t.Fatalf("decode mapping: %v", err)
	}
	if _, ok := mapping["exp"]; ok {
		t.Fatalf("expected mapping removed, got %+v", mapping)
	}
}

func TestListSampleContent_FiltersAndOrders(t *testing.T) {
	db := newSampleContentTestDB(t)
	router := newSampleContentTestRouter(db)

	seed := []database.SampleContentItem{
		{ContentType: "experience", Content: mustJSON(map[string]any{}), Quality: 3, IsActive: true, IsApproved: true},
		{ContentType: "experience", Content: mustJSON(map[string]any{}), Quality: 8, IsActive: true, IsApproved: true},
		{ContentType: "education", Content: mustJSON(map[string]any{}), Quality: 5, IsActive: true, IsApproved: false},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/sample-content?content_type=experience", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var items []sampleContentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 experience items, got %d", len(items))
	}
	if items[0].Quality != 8 {
		t.Fatalf("expected quality DESC order, got first quality %d", items[0].Quality)
	}

	w = doJSON(t, router, http.MethodGet, "/sample-content?approved=false", nil)
	items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 || items[0].ContentType != "education" {
		t.Fatalf("expected only unapproved education item, got %+v", items)
	}
}
