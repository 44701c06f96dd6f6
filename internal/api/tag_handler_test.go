package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/database"
)

func newTagTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Template{}, &database.Tag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTagTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTagHandler(db)

	router := gin.New()
	router.POST("/tags", h.CreateTag)
	router.GET("/tags", h.ListTags)
	router.DELETE("/tags/:id", h.DeleteTag)
	router.PUT("/templates/:id/tags", h.SetTemplateTags)
	return router
}

func TestCreateTag_DuplicateNameConflicts(t *testing.T) {
	db := newTagTestDB(t)
	router := newTagTestRouter(db)

	w := doJSON(t, router, http.MethodPost, "/tags", gin.H{"name": "Modern"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/tags", gin.H{"name": "Modern"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate tag got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateTag_SlugDerivedFromName(t *testing.T) {
	db := newTagTestDB(t)
	router := newTagTestRouter(db)

	w := doJSON(t, router, http.MethodPost, "/tags", gin.H{"name": "Two Column"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp tagResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Slug != "two-column" {
		t.Fatalf("expected derived slug two-column, got %s", resp.Slug)
	}
}

func TestDeleteTag_DetachesFromTemplates(t *testing.T) {
	db := newTagTestDB(t)
	router := newTagTestRouter(db)

	created := doJSON(t, router, http.MethodPost, "/tags", gin.H{"name": "Creative"})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}

	record := database.Template{Name: "Modern", DocumentType: "resume", UserID: 1}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if w := doJSON(t, router, http.MethodPut, "/templates/1/tags", gin.H{"tag_ids": []uint{1}}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, router, http.MethodDelete, "/tags/1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}

	count := db.Model(&record).Association("Tags").Count()
	if count != 0 {
		t.Fatalf("expected no tags left on template, got %d", count)
	}
}
