package samplecontent

import (
	"context"

	"cvStudio/internal/template"
)

// Item 是解析后的示例内容视图（与存储模型解耦）。
type Item struct {
	ID              uint           `json:"id"`
	ContentType     string         `json:"content_type"`
	Content         map[string]any `json:"content"`
	Industries      []string       `json:"industries,omitempty"`
	Specializations []string       `json:"specializations,omitempty"`
	JobTitles       []string       `json:"job_titles,omitempty"`
	ExperienceLevel string         `json:"experience_level,omitempty"`
	Quality         int            `json:"quality"`
}

// Targeting 是模板自身的目标画像，兜底匹配时作为前置过滤条件。
type Targeting struct {
	Industries      []string
	Specializations []string
	ExperienceLevel string
}

// TemplateView 是解析器需要的模板切面。
type TemplateView struct {
	// SpecificSampleContent: sectionId -> [contentId, ...]。
	SpecificSampleContent map[string][]uint
	Targeting             Targeting
}

// Library 是示例内容的查询协作方。
type Library interface {
	// ByID 按 ID 查找；不存在时返回 (nil, nil)。
	ByID(ctx context.Context, id uint) (*Item, error)
	// ByContentType 返回指定类型的候选（确定性顺序，质量优先），
	// targeting 维度为空则不参与过滤。
	ByContentType(ctx context.Context, contentType string, targeting Targeting) ([]Item, error)
}

// Resolver 为模板区块挑选示例内容。
type Resolver struct {
	library Library
}

// NewResolver 构造解析器。
func NewResolver(library Library) *Resolver {
	return &Resolver{library: library}
}

// Resolve 为区块挑选零或一条示例内容：
//  1. 模板的显式映射里有该区块时，取第一个能查到的内容 ID；
//  2. 否则按区块类型在默认池兜底（类型相等 + 画像前置过滤，取第一条）；
//  3. custom 区块从不兜底，只认显式映射；
//  4. 两条路径都无命中时返回 (nil, nil) —— 无匹配不是错误，
//     渲染方需要显式处理空态。
func (r *Resolver) Resolve(ctx context.Context, tpl TemplateView, section template.Section) (*Item, error) {
	if ids := tpl.SpecificSampleContent[section.ID]; len(ids) > 0 {
		for _, id := range ids {
			item, err := r.library.ByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if item != nil {
				return item, nil
			}
		}
		// 映射里的 ID 全部失效时继续走兜底（custom 除外）。
	}

	if section.Type == template.SectionCustom {
		return nil, nil
	}

	candidates, err := r.library.ByContentType(ctx, string(section.Type), tpl.Targeting)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	item := candidates[0]
	return &item, nil
}
