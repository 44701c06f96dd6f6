package template

import "cvStudio/internal/design"

// 预置变体是纯数据表：创建模板时可按需套用，
// 套用时再生成 ID 与 sortOrder，这里只描述覆盖内容。

// Preset 描述一份可套用的预置变体。
type Preset struct {
	Name            string
	Description     string
	VariantType     VariantType
	DesignOverrides design.Config
	IsPremium       bool
}

var colorPresets = []Preset{
	{
		Name:        "Slate",
		Description: "Muted blue-gray palette",
		VariantType: VariantColor,
		DesignOverrides: design.Config{
			"colors": map[string]any{
				"primary":   "#334155",
				"secondary": "#64748b",
				"accent":    "#0ea5e9",
			},
		},
	},
	{
		Name:        "Forest",
		Description: "Deep green palette",
		VariantType: VariantColor,
		DesignOverrides: design.Config{
			"colors": map[string]any{
				"primary":   "#14532d",
				"secondary": "#16a34a",
				"accent":    "#bbf7d0",
			},
		},
	},
	{
		Name:        "Burgundy",
		Description: "Warm executive palette",
		VariantType: VariantColor,
		IsPremium:   true,
		DesignOverrides: design.Config{
			"colors": map[string]any{
				"primary":   "#7f1d1d",
				"secondary": "#b91c1c",
				"accent":    "#fbbf24",
			},
		},
	},
}

var typographyPresets = []Preset{
	{
		Name:        "Classic Serif",
		Description: "Lora headings with Source Serif body",
		VariantType: VariantTypography,
		DesignOverrides: design.Config{
			"typography": map[string]any{
				"fontFamily":        "Lora",
				"headingFontFamily": "Lora",
				"fontSize":          11,
				"lineHeight":        1.45,
			},
		},
	},
	{
		Name:        "Modern Sans",
		Description: "Inter throughout",
		VariantType: VariantTypography,
		DesignOverrides: design.Config{
			"typography": map[string]any{
				"fontFamily":        "Inter",
				"headingFontFamily": "Inter",
				"fontSize":          10,
				"lineHeight":        1.4,
			},
		},
	},
}

var layoutPresets = []Preset{
	{
		Name:        "Compact",
		Description: "Tight spacing for dense resumes",
		VariantType: VariantLayout,
		DesignOverrides: design.Config{
			"spacing": map[string]any{
				"sectionGap": 10,
				"itemGap":    4,
				"pageMargin": 28,
			},
		},
	},
	{
		Name:        "Airy",
		Description: "Generous whitespace",
		VariantType: VariantLayout,
		DesignOverrides: design.Config{
			"spacing": map[string]any{
				"sectionGap": 20,
				"itemGap":    10,
				"pageMargin": 48,
			},
		},
	},
}

// Presets 返回全部预置变体表（颜色、字体、版式），只读数据。
func Presets() []Preset {
	out := make([]Preset, 0, len(colorPresets)+len(typographyPresets)+len(layoutPresets))
	out = append(out, colorPresets...)
	out = append(out, typographyPresets...)
	out = append(out, layoutPresets...)
	return out
}

// ApplyPresets 把预置变体逐个加入集合，第一份标记为默认。
func ApplyPresets(set *Set) error {
	for i, preset := range Presets() {
		_, err := set.Create(Variant{
			Name:            preset.Name,
			Description:     preset.Description,
			VariantType:     preset.VariantType,
			DesignOverrides: design.Clone(preset.DesignOverrides),
			SortOrder:       i,
			IsDefault:       i == 0,
			IsPremium:       preset.IsPremium,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
