package template

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"cvStudio/internal/design"
)

var (
	ErrVariantNotFound    = errors.New("variant not found")
	ErrInvalidVariantType = errors.New("invalid variant type")
	ErrVariantNameEmpty   = errors.New("variant name is required")

	ErrSectionIDRequired  = errors.New("section id is required")
	ErrDuplicateSectionID = errors.New("duplicate section id")
	ErrInvalidSectionType = errors.New("invalid section type")
)

// VariantType 标识变体覆盖的范畴。
type VariantType string

const (
	VariantColor      VariantType = "color"
	VariantLayout     VariantType = "layout"
	VariantTypography VariantType = "typography"
	VariantStyle      VariantType = "style"
	VariantComplete   VariantType = "complete"
)

var variantTypes = map[VariantType]struct{}{
	VariantColor:      {},
	VariantLayout:     {},
	VariantTypography: {},
	VariantStyle:      {},
	VariantComplete:   {},
}

// ValidVariantType 判断变体类型是否合法。
func ValidVariantType(t VariantType) bool {
	_, ok := variantTypes[t]
	return ok
}

// Variant 是挂在模板上的一份命名设计覆盖。
// 整个集合以 JSONB 形式内嵌在模板记录里，顺序即插入顺序。
type Variant struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	VariantType     VariantType   `json:"variant_type"`
	DesignOverrides design.Config `json:"design_overrides,omitempty"`
	SortOrder       int           `json:"sort_order"`
	IsDefault       bool          `json:"is_default"`
	IsPremium       bool          `json:"is_premium"`
	PreviewImageURL string        `json:"preview_image_url,omitempty"`
}

// VariantPatch 表示对变体的浅覆盖：nil 字段保持原值。
type VariantPatch struct {
	Name            *string        `json:"name,omitempty"`
	Description     *string        `json:"description,omitempty"`
	VariantType     *VariantType   `json:"variant_type,omitempty"`
	DesignOverrides *design.Config `json:"design_overrides,omitempty"`
	SortOrder       *int           `json:"sort_order,omitempty"`
	IsDefault       *bool          `json:"is_default,omitempty"`
	IsPremium       *bool          `json:"is_premium,omitempty"`
	PreviewImageURL *string        `json:"preview_image_url,omitempty"`
}

// Set 是模板内嵌的有序变体集合。所有方法都在内存中操作，
// 持久化（整列回写）由调用方负责；并发写同一模板为 last-write-wins。
type Set struct {
	variants []Variant
}

// NewSet 从解码后的切片构造集合。
func NewSet(variants []Variant) *Set {
	return &Set{variants: variants}
}

// Variants 返回底层切片（插入顺序）。
func (s *Set) Variants() []Variant {
	return s.variants
}

// Len 返回变体数量。
func (s *Set) Len() int {
	return len(s.variants)
}

// Create 生成新 ID 并把变体追加到集合末尾。
// 若新变体声明为默认，先清掉其余变体的默认标记，保证唯一默认。
func (s *Set) Create(variant Variant) (Variant, error) {
	if variant.Name == "" {
		return Variant{}, ErrVariantNameEmpty
	}
	if !ValidVariantType(variant.VariantType) {
		return Variant{}, ErrInvalidVariantType
	}

	variant.ID = uuid.NewString()
	if variant.IsDefault {
		s.clearDefaults()
	}
	s.variants = append(s.variants, variant)
	return variant, nil
}

// Update 按 ID 定位变体并应用浅补丁；补丁未携带的字段保持原值。
// 补丁把 IsDefault 置为 true 时，其余变体的默认标记全部清除。
func (s *Set) Update(variantID string, patch VariantPatch) (Variant, error) {
	idx := s.indexOf(variantID)
	if idx < 0 {
		return Variant{}, ErrVariantNotFound
	}

	if patch.VariantType != nil && !ValidVariantType(*patch.VariantType) {
		return Variant{}, ErrInvalidVariantType
	}
	if patch.Name != nil && *patch.Name == "" {
		return Variant{}, ErrVariantNameEmpty
	}

	if patch.IsDefault != nil && *patch.IsDefault {
		s.clearDefaults()
	}

	applyPatch(&s.variants[idx], patch)
	return s.variants[idx], nil
}

// Delete 按 ID 删除变体。若删除的是默认变体且还有剩余，
// 把 sortOrder 最小（并列时取靠前插入）的幸存者提升为默认。
func (s *Set) Delete(variantID string) error {
	idx := s.indexOf(variantID)
	if idx < 0 {
		return ErrVariantNotFound
	}

	wasDefault := s.variants[idx].IsDefault
	s.variants = append(s.variants[:idx], s.variants[idx+1:]...)

	if wasDefault && len(s.variants) > 0 {
		first := 0
		for i := 1; i < len(s.variants); i++ {
			if s.variants[i].SortOrder < s.variants[first].SortOrder {
				first = i
			}
		}
		s.variants[first].IsDefault = true
	}
	return nil
}

// Reorder 按映射更新 sortOrder；映射缺失的变体保持原值，不会归零。
func (s *Set) Reorder(order map[string]int) {
	for i := range s.variants {
		if value, ok := order[s.variants[i].ID]; ok {
			s.variants[i].SortOrder = value
		}
	}
}

// Duplicate 复制指定变体：新 ID、新名称、默认标记强制为 false，
// sortOrder 取现有最大值加一（空集合时为 0）。
// 若提供 modifications，新变体的覆盖为 merge(源覆盖, modifications)。
func (s *Set) Duplicate(sourceID, newName string, modifications design.Config) (Variant, error) {
	idx := s.indexOf(sourceID)
	if idx < 0 {
		return Variant{}, ErrVariantNotFound
	}
	if newName == "" {
		return Variant{}, ErrVariantNameEmpty
	}

	source := s.variants[idx]
	copied := source
	copied.ID = uuid.NewString()
	copied.Name = newName
	copied.IsDefault = false
	copied.SortOrder = s.nextSortOrder()

	if len(modifications) > 0 {
		copied.DesignOverrides = design.Merge(source.DesignOverrides, modifications)
	} else {
		copied.DesignOverrides = design.Clone(source.DesignOverrides)
	}

	s.variants = append(s.variants, copied)
	return copied, nil
}

// BulkUpdate 对目标 ID 集内的每个变体应用同一份浅补丁，
// 返回实际命中的变体数。
// 补丁把 IsDefault 置为 true 时，以请求列表中最后一个命中的 ID
// 作为唯一默认，其余变体（无论在不在目标集内）全部清除默认标记，
// 保证批量更新后唯一默认不被破坏。
func (s *Set) BulkUpdate(variantIDs []string, patch VariantPatch) int {
	matched := 0
	lastDefaultID := ""

	for _, id := range variantIDs {
		idx := s.indexOf(id)
		if idx < 0 {
			continue
		}
		matched++
		applyPatch(&s.variants[idx], patch)
		if patch.IsDefault != nil && *patch.IsDefault {
			lastDefaultID = id
		}
	}

	if lastDefaultID != "" {
		for i := range s.variants {
			s.variants[i].IsDefault = s.variants[i].ID == lastDefaultID
		}
	}
	return matched
}

// ResolvedVariant 是附带了完整解析配置的变体视图。
type ResolvedVariant struct {
	Variant
	ComputedDesignConfig design.Config `json:"computed_design_config"`
}

// SortedResolved 返回按 sortOrder 升序（稳定，并列保持插入顺序）的
// 全部变体，每个都附带 merge(baseConfig, overrides) 的解析结果。
// defaultVariant 取显式默认者；无显式默认时取排序后的第一个；
// 集合为空时为 nil。解析结果只在读取时计算，从不落库。
func (s *Set) SortedResolved(baseConfig design.Config) (resolved []ResolvedVariant, defaultVariant *ResolvedVariant) {
	resolved = make([]ResolvedVariant, 0, len(s.variants))
	for _, variant := range s.variants {
		resolved = append(resolved, ResolvedVariant{
			Variant:              variant,
			ComputedDesignConfig: design.Merge(baseConfig, variant.DesignOverrides),
		})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].SortOrder < resolved[j].SortOrder
	})

	if len(resolved) == 0 {
		return resolved, nil
	}
	for i := range resolved {
		if resolved[i].IsDefault {
			return resolved, &resolved[i]
		}
	}
	return resolved, &resolved[0]
}

// DefaultID 返回显式默认变体的 ID，没有则返回空串。
func (s *Set) DefaultID() string {
	for _, variant := range s.variants {
		if variant.IsDefault {
			return variant.ID
		}
	}
	return ""
}

func (s *Set) indexOf(variantID string) int {
	for i := range s.variants {
		if s.variants[i].ID == variantID {
			return i
		}
	}
	return -1
}

func (s *Set) clearDefaults() {
	for i := range s.variants {
		s.variants[i].IsDefault = false
	}
}

func (s *Set) nextSortOrder() int {
	if len(s.variants) == 0 {
		return 0
	}
	max := s.variants[0].SortOrder
	for _, variant := range s.variants[1:] {
		if variant.SortOrder > max {
			max = variant.SortOrder
		}
	}
	return max + 1
}

func applyPatch(variant *Variant, patch VariantPatch) {
	if patch.Name != nil {
		variant.Name = *patch.Name
	}
	if patch.Description != nil {
		variant.Description = *patch.Description
	}
	if patch.VariantType != nil {
		variant.VariantType = *patch.VariantType
	}
	if patch.DesignOverrides != nil {
		variant.DesignOverrides = design.Clone(*patch.DesignOverrides)
	}
	if patch.SortOrder != nil {
		variant.SortOrder = *patch.SortOrder
	}
	if patch.IsDefault != nil {
		variant.IsDefault = *patch.IsDefault
	}
	if patch.IsPremium != nil {
		variant.IsPremium = *patch.IsPremium
	}
	if patch.PreviewImageURL != nil {
		variant.PreviewImageURL = *patch.PreviewImageURL
	}
}
