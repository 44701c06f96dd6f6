package samplecontent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cvStudio/internal/database"
)

// GormLibrary 基于数据库实现 Library，只返回启用且已审核的条目。
type GormLibrary struct {
	db *gorm.DB
}

// NewGormLibrary 构造数据库查询协作方。
func NewGormLibrary(db *gorm.DB) *GormLibrary {
	return &GormLibrary{db: db}
}

// ByID 按 ID 查找条目；不存在或未启用时返回 (nil, nil)。
func (l *GormLibrary) ByID(ctx context.Context, id uint) (*Item, error) {
	var record database.SampleContentItem
	err := l.db.WithContext(ctx).
		Where("is_active = ? AND is_approved = ?", true, true).
		First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sample content %d: %w", id, err)
	}

	item, err := itemFromRecord(record)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ByContentType 返回指定类型的候选，质量降序、ID 升序保证顺序确定；
// 画像过滤在解码后的切片上做相等匹配（维度为空则跳过）。
func (l *GormLibrary) ByContentType(ctx context.Context, contentType string, targeting Targeting) ([]Item, error) {
	var records []database.SampleContentItem
	err := l.db.WithContext(ctx).
		Where("content_type = ? AND is_active = ? AND is_approved = ?", contentType, true, true).
		Order("quality DESC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query sample content by type %q: %w", contentType, err)
	}

	items := make([]Item, 0, len(records))
	for _, record := range records {
		item, err := itemFromRecord(record)
		if err != nil {
			return nil, err
		}
		if !matchesTargeting(item, targeting) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func matchesTargeting(item Item, targeting Targeting) bool {
	if targeting.ExperienceLevel != "" && item.ExperienceLevel != "" &&
		item.ExperienceLevel != targeting.ExperienceLevel {
		return false
	}
	if len(targeting.Industries) > 0 && len(item.Industries) > 0 &&
		!intersects(item.Industries, targeting.Industries) {
		return false
	}
	if len(targeting.Specializations) > 0 && len(item.Specializations) > 0 &&
		!intersects(item.Specializations, targeting.Specializations) {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, value := range a {
		set[value] = struct{}{}
	}
	for _, value := range b {
		if _, ok := set[value]; ok {
			return true
		}
	}
	return false
}

func itemFromRecord(record database.SampleContentItem) (Item, error) {
	item := Item{
		ID:              record.ID,
		ContentType:     record.ContentType,
		ExperienceLevel: record.ExperienceLevel,
		Quality:         record.Quality,
	}

	if len(record.Content) > 0 {
		if err := json.Unmarshal(record.Content, &item.Content); err != nil {
			return Item{}, fmt.Errorf("decode sample content %d: %w", record.ID, err)
		}
	}
	for _, pair := range []struct {
		raw  []byte
		dest *[]string
	}{
		{record.Industries, &item.Industries},
		{record.Specializations, &item.Specializations},
		{record.JobTitles, &item.JobTitles},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return Item{}, fmt.Errorf("decode sample content %d facets: %w", record.ID, err)
		}
	}
	return item, nil
}
