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

func newDocumentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Template{}, &database.Tag{}, &database.Resume{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newDocumentTestRouter(db *gorm.DB, maxDocs int, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewResumeHandler(db, maxDocs)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", userID)
	})
	router.GET("/resumes", h.ListDocuments)
	router.GET("/resumes/latest", h.GetLatestDocument)
	router.GET("/resumes/:id", h.GetDocument)
	router.POST("/resumes", h.CreateDocument)
	router.PATCH("/resumes/:id", h.UpdateDocument)
	router.POST("/resumes/:id/duplicate", h.DuplicateDocument)
	router.DELETE("/resumes/:id", h.DeleteDocument)
	return router
}

func TestCreateDocument_BlankTemplateAllowed(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "My Resume",
		"content": gin.H{"summary": "hello"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp documentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Version != 1 {
		t.Fatalf("expected version 1, got %d", resp.Version)
	}
	if resp.TemplateID != nil {
		t.Fatalf("expected nil template id for blank document")
	}
}

func TestCreateDocument_VariantWithoutTemplateRejected(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":      "Broken",
		"content":    gin.H{},
		"variant_id": "v1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateDocument_UnpublishedTemplateRejected(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	record := database.Template{Name: "Draft", DocumentType: "resume", UserID: 1}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":       "From Draft",
		"content":     gin.H{},
		"template_id": record.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateDocument_PublishedTemplateWithVariant(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	record := database.Template{
		Name:         "Modern",
		DocumentType: "resume",
		IsPublished:  true,
		UserID:       1,
		Variants: mustJSON([]template.Variant{
			{ID: "dark", Name: "Dark", VariantType: template.VariantColor},
		}),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":       "Styled",
		"content":     gin.H{},
		"template_id": record.ID,
		"variant_id":  "dark",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	missing := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":       "Bad Variant",
		"content":     gin.H{},
		"template_id": record.ID,
		"variant_id":  "ghost",
	})
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", missing.Code, missing.Body.String())
	}
}

func TestCreateDocument_LimitEnforced(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 2, 1)

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
			"title":   "Doc",
			"content": gin.H{},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "One Too Many",
		"content": gin.H{},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateDocument_BumpsVersion(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	created := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "Original",
		"content": gin.H{"summary": "v1"},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}
	var doc documentResponse
	if err := json.Unmarshal(created.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	updated := doJSON(t, router, http.MethodPatch, "/resumes/1", gin.H{
		"title": "Renamed",
	})
	if updated.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", updated.Code, updated.Body.String())
	}
	if err := json.Unmarshal(updated.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %s", doc.Title)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", doc.Version)
	}
}

func TestUpdateDocument_VariantOnlyPatchValidated(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	record := database.Template{
		Name:         "Modern",
		DocumentType: "resume",
		IsPublished:  true,
		UserID:       1,
		Variants: mustJSON([]template.Variant{
			{ID: "dark", Name: "Dark", VariantType: template.VariantColor},
			{ID: "light", Name: "Light", VariantType: template.VariantColor},
		}),
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	created := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":       "Styled",
		"content":     gin.H{},
		"template_id": record.ID,
		"variant_id":  "dark",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}

	w := doJSON(t, router, http.MethodPatch, "/resumes/1", gin.H{"variant_id": "ghost"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown variant got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/resumes/1", nil)
	var doc documentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.VariantID != "dark" {
		t.Fatalf("expected variant unchanged after rejected patch, got %q", doc.VariantID)
	}
	if doc.Version != 1 {
		t.Fatalf("expected version unchanged after rejected patch, got %d", doc.Version)
	}

	w = doJSON(t, router, http.MethodPatch, "/resumes/1", gin.H{"variant_id": "light"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.VariantID != "light" {
		t.Fatalf("expected variant light, got %q", doc.VariantID)
	}
}

func TestUpdateDocument_VariantWithoutTemplateRejected(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	created := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "Blank",
		"content": gin.H{},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}

	w := doJSON(t, router, http.MethodPatch, "/resumes/1", gin.H{"variant_id": "dark"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for variant on templateless document got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDocumentOwnership_OtherUserGets404(t *testing.T) {
	db := newDocumentTestDB(t)
	owner := newDocumentTestRouter(db, 5, 1)
	stranger := newDocumentTestRouter(db, 5, 2)

	created := doJSON(t, owner, http.MethodPost, "/resumes", gin.H{
		"title":   "Private",
		"content": gin.H{},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}

	w := doJSON(t, stranger, http.MethodGet, "/resumes/1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDuplicateDocument_CopiesContentResetsVersion(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	created := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "Source",
		"content": gin.H{"summary": "keep me"},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}
	// 抬高源文档版本，复制件必须从 1 重新开始。
	doJSON(t, router, http.MethodPatch, "/resumes/1", gin.H{"title": "Source v2"})

	w := doJSON(t, router, http.MethodPost, "/resumes/1/duplicate", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var copied documentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &copied); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if copied.Title != "Source v2 (copy)" {
		t.Fatalf("unexpected copy title: %s", copied.Title)
	}
	if copied.Version != 1 {
		t.Fatalf("expected copy version 1, got %d", copied.Version)
	}
}

func TestDeleteDocument_RemovedFromListAndLatest(t *testing.T) {
	db := newDocumentTestDB(t)
	router := newDocumentTestRouter(db, 5, 1)

	created := doJSON(t, router, http.MethodPost, "/resumes", gin.H{
		"title":   "Short Lived",
		"content": gin.H{},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", created.Code, created.Body.String())
	}

	deleted := doJSON(t, router, http.MethodDelete, "/resumes/1", nil)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", deleted.Code, deleted.Body.String())
	}

	list := doJSON(t, router, http.MethodGet, "/resumes", nil)
	var items []documentListItem
	if err := json.Unmarshal(list.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d items", len(items))
	}

	latest := doJSON(t, router, http.MethodGet, "/resumes/latest", nil)
	if latest.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", latest.Code, latest.Body.String())
	}
}
