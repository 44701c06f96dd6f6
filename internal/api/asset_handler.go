package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvStudio/internal/config"
	"cvStudio/internal/database"
	"cvStudio/internal/storage"
)

// AssetHandler 负责图片资产的上传、访问与删除。
// 上传前经 clamd 扫描，对象落 MinIO，归属记录落库，
// 每日上传次数用 Redis 计数限流。
type AssetHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	logger      *slog.Logger
	clamdAddr   string
	limits      config.LimitsConfig
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(db *gorm.DB, storageClient *storage.Client, redisClient *redis.Client, logger *slog.Logger, clamdAddr string, limits config.LimitsConfig) *AssetHandler {
	return &AssetHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		logger:      logger,
		clamdAddr:   clamdAddr,
		limits:      limits,
	}
}

// UploadAsset 处理受保护的图片上传，并在上传前扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()

	if h.limits.MaxAssetsPerUser > 0 {
		var count int64
		if err := h.db.WithContext(ctx).Model(&database.Asset{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			Internal(c, "failed to count assets")
			return
		}
		if count >= int64(h.limits.MaxAssetsPerUser) {
			Forbidden(c, "asset limit reached")
			return
		}
	}

	if h.redisClient != nil && h.limits.MaxUploadsPerDay > 0 {
		key := fmt.Sprintf("asset_uploads:%d:%s", userID, time.Now().UTC().Format("2006-01-02"))
		uploads, err := h.redisClient.Incr(ctx, key).Result()
		if err == nil {
			if uploads == 1 {
				h.redisClient.Expire(ctx, key, 24*time.Hour)
			}
			if uploads > int64(h.limits.MaxUploadsPerDay) {
				Error(c, http.StatusTooManyRequests, "daily upload limit reached")
				return
			}
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}

	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		h.logger.Error("scan file", slog.String("error", err.Error()))
		Internal(c, "failed to scan file")
		return
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	fileReader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("user-assets/%d/%s.png", userID, uuid.NewString())
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := h.storage.UploadFile(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger.Error("upload file", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	record := database.Asset{UserID: userID, ObjectKey: objectKey}
	if err := h.db.WithContext(ctx).Create(&record).Error; err != nil {
		h.logger.Error("record asset", slog.String("error", err.Error()))
		Internal(c, "failed to record asset")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// ListAssets 按最近上传顺序列出用户资产，附带临时预览 URL。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var records []database.Asset
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		Internal(c, "failed to list assets")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		url, err := h.storage.GeneratePresignedURL(ctx, record.ObjectKey, 10*time.Minute)
		if err != nil {
			h.logger.Error("generate asset url", slog.String("objectKey", record.ObjectKey), slog.String("error", err.Error()))
			continue
		}
		items = append(items, gin.H{
			"objectKey":  record.ObjectKey,
			"previewUrl": url,
			"uploadedAt": record.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !isValidUserAssetObjectKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DeleteAsset 删除资产对象与归属记录。
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !isValidUserAssetObjectKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	ctx := c.Request.Context()
	var record database.Asset
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND object_key = ?", userID, objectKey).
		First(&record).Error; err != nil {
		NotFound(c, "asset not found")
		return
	}

	if err := h.storage.DeleteObject(ctx, objectKey); err != nil && !storage.IsNoSuchKey(err) {
		h.logger.Error("delete object", slog.String("error", err.Error()))
		Internal(c, "failed to delete asset")
		return
	}
	if err := h.db.WithContext(ctx).Unscoped().Delete(&record).Error; err != nil {
		Internal(c, "failed to delete asset record")
		return
	}

	c.Status(http.StatusNoContent)
}

func isValidUserAssetObjectKey(userID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	expected := fmt.Sprintf("user-assets/%d/", userID)
	if !strings.HasPrefix(key, expected) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(key))
	if !(strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".webp")) {
		return false
	}
	return true
}
