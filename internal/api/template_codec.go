package api

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"cvStudio/internal/database"
	"cvStudio/internal/design"
	"cvStudio/internal/samplecontent"
	"cvStudio/internal/template"
)

// 模板记录里的 JSONB 列与领域类型之间的编解码。
// 变体集合整列读改写：并发修改同一模板时后写覆盖先写（已知限制）。

func decodeVariantSet(record *database.Template) (*template.Set, error) {
	if len(record.Variants) == 0 {
		return template.NewSet(nil), nil
	}
	var variants []template.Variant
	if err := json.Unmarshal(record.Variants, &variants); err != nil {
		return nil, fmt.Errorf("decode template %d variants: %w", record.ID, err)
	}
	return template.NewSet(variants), nil
}

func encodeVariantSet(set *template.Set) (datatypes.JSON, error) {
	raw, err := json.Marshal(set.Variants())
	if err != nil {
		return nil, fmt.Errorf("encode variants: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeDesignConfig(record *database.Template) (design.Config, error) {
	if len(record.DesignConfig) == 0 {
		return design.Config{}, nil
	}
	var cfg design.Config
	if err := json.Unmarshal(record.DesignConfig, &cfg); err != nil {
		return nil, fmt.Errorf("decode template %d design config: %w", record.ID, err)
	}
	return cfg, nil
}

func decodeStructure(record *database.Template) ([]template.Section, error) {
	if len(record.Structure) == 0 {
		return nil, nil
	}
	var sections []template.Section
	if err := json.Unmarshal(record.Structure, &sections); err != nil {
		return nil, fmt.Errorf("decode template %d structure: %w", record.ID, err)
	}
	return sections, nil
}

func decodeSampleContentMap(record *database.Template) (map[string][]uint, error) {
	if len(record.SpecificSampleContent) == 0 {
		return map[string][]uint{}, nil
	}
	var mapping map[string][]uint
	if err := json.Unmarshal(record.SpecificSampleContent, &mapping); err != nil {
		return nil, fmt.Errorf("decode template %d sample content map: %w", record.ID, err)
	}
	return mapping, nil
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func templateResolverView(record *database.Template) (samplecontent.TemplateView, error) {
	mapping, err := decodeSampleContentMap(record)
	if err != nil {
		return samplecontent.TemplateView{}, err
	}
	return samplecontent.TemplateView{
		SpecificSampleContent: mapping,
		Targeting: samplecontent.Targeting{
			Industries:      decodeStringList(record.Industries),
			Specializations: decodeStringList(record.Specializations),
			ExperienceLevel: record.ExperienceLevel,
		},
	}, nil
}

func mustJSON(value any) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}
