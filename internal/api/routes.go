package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/config"
	"cvStudio/internal/samplecontent"
	"cvStudio/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
// 管理端（模板/变体/示例内容/标签/合集）要求 admin 角色，
// 用户端（文档/资产）只要求登录，internal 组供 worker 回调。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	cfg *config.Config,
) {
	router.Use(middleware.CorrelationIDMiddleware(), middleware.SlogLoggerMiddleware(logger))

	resolver := samplecontent.NewResolver(samplecontent.NewGormLibrary(db))

	templateHandler := NewTemplateHandler(db, resolver)
	variantHandler := NewVariantHandler(db, redisClient, asynqClient)
	sampleContentHandler := NewSampleContentHandler(db)
	tagHandler := NewTagHandler(db)
	collectionHandler := NewCollectionHandler(db)
	assetHandler := NewAssetHandler(db, storageClient, redisClient, logger, cfg.API.ClamdAddr, cfg.Limits)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)

	resumeHandler := NewResumeHandler(db, cfg.Limits.MaxDocumentsPerUser)
	cvHandler := NewCVHandler(db, cfg.Limits.MaxDocumentsPerUser)
	coverLetterHandler := NewCoverLetterHandler(db, cfg.Limits.MaxDocumentsPerUser)

	authMiddleware := middleware.AuthMiddleware(authService)
	adminOnly := middleware.RequireAdminMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		// 已发布模板的浏览对所有登录用户开放。
		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
			templateGroup.GET("/:id/variants/resolved", variantHandler.ListResolvedVariants)
			templateGroup.GET("/:id/sections/:sectionId/sample", templateHandler.ResolveSectionSample)
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(authMiddleware, adminOnly)
		{
			adminGroup.POST("/templates", templateHandler.CreateTemplate)
			adminGroup.PATCH("/templates/:id", templateHandler.UpdateTemplate)
			adminGroup.POST("/templates/:id/publish", templateHandler.PublishTemplate)
			adminGroup.DELETE("/templates/:id", templateHandler.DeleteTemplate)
			adminGroup.PUT("/templates/:id/tags", tagHandler.SetTemplateTags)
			adminGroup.PUT("/templates/:id/sections/:sectionId/sample-content", sampleContentHandler.SetSectionMapping)

			adminGroup.POST("/templates/:id/variants", variantHandler.CreateVariant)
			adminGroup.PATCH("/templates/:id/variants/:variantId", variantHandler.UpdateVariant)
			adminGroup.DELETE("/templates/:id/variants/:variantId", variantHandler.DeleteVariant)
			adminGroup.PUT("/templates/:id/variants/order", variantHandler.ReorderVariants)
			adminGroup.POST("/templates/:id/variants/:variantId/duplicate", variantHandler.DuplicateVariant)
			adminGroup.POST("/templates/:id/variants/bulk-update", variantHandler.BulkUpdateVariants)
			adminGroup.POST("/templates/:id/variants/bulk-delete", variantHandler.BulkDeleteVariants)

			adminGroup.POST("/sample-content", sampleContentHandler.CreateSampleContent)
			adminGroup.GET("/sample-content", sampleContentHandler.ListSampleContent)
			adminGroup.PUT("/sample-content/:id", sampleContentHandler.UpdateSampleContent)
			adminGroup.DELETE("/sample-content/:id", sampleContentHandler.DeleteSampleContent)

			adminGroup.POST("/tags", tagHandler.CreateTag)
			adminGroup.GET("/tags", tagHandler.ListTags)
			adminGroup.DELETE("/tags/:id", tagHandler.DeleteTag)

			adminGroup.POST("/collections", collectionHandler.CreateCollection)
			adminGroup.GET("/collections", collectionHandler.ListCollections)
			adminGroup.GET("/collections/:id", collectionHandler.GetCollection)
			adminGroup.PUT("/collections/:id", collectionHandler.UpdateCollection)
			adminGroup.DELETE("/collections/:id", collectionHandler.DeleteCollection)
			adminGroup.POST("/collections/:id/templates", collectionHandler.AddTemplates)
			adminGroup.DELETE("/collections/:id/templates/:templateId", collectionHandler.RemoveTemplate)
		}

		registerDocumentRoutes(v1.Group("/resumes", authMiddleware), resumeHandler)
		registerDocumentRoutes(v1.Group("/cvs", authMiddleware), cvHandler)
		registerDocumentRoutes(v1.Group("/cover-letters", authMiddleware), coverLetterHandler)

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("", assetHandler.ListAssets)
			assetGroup.GET("/view", assetHandler.GetAssetURL)
			assetGroup.DELETE("", assetHandler.DeleteAsset)
		}

		internalGroup := v1.Group("/internal")
		internalGroup.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
		{
			internalGroup.GET("/templates/:id/print-data", templateHandler.GetPrintTemplateData)
		}
	}
}

func registerDocumentRoutes(group *gin.RouterGroup, handler *DocumentHandler) {
	group.GET("", handler.ListDocuments)
	group.GET("/latest", handler.GetLatestDocument)
	group.GET("/:id", handler.GetDocument)
	group.POST("", handler.CreateDocument)
	group.PATCH("/:id", handler.UpdateDocument)
	group.POST("/:id/duplicate", handler.DuplicateDocument)
	group.DELETE("/:id", handler.DeleteDocument)
}
