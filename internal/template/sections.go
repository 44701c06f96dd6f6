package template

// SectionType 是模板结构中区块的类型标签（封闭集合）。
type SectionType string

const (
	SectionPersonalInfo   SectionType = "personal_info"
	SectionSummary        SectionType = "summary"
	SectionExperience     SectionType = "experience"
	SectionEducation      SectionType = "education"
	SectionSkills         SectionType = "skills"
	SectionProjects       SectionType = "projects"
	SectionCertifications SectionType = "certifications"
	SectionPublications   SectionType = "publications"
	SectionAchievements   SectionType = "achievements"
	SectionReferences     SectionType = "references"
	SectionCustom         SectionType = "custom"
)

var sectionTypes = map[SectionType]struct{}{
	SectionPersonalInfo:   {},
	SectionSummary:        {},
	SectionExperience:     {},
	SectionEducation:      {},
	SectionSkills:         {},
	SectionProjects:       {},
	SectionCertifications: {},
	SectionPublications:   {},
	SectionAchievements:   {},
	SectionReferences:     {},
	SectionCustom:         {},
}

// ValidSectionType 判断类型标签是否在封闭集合内。
func ValidSectionType(t SectionType) bool {
	_, ok := sectionTypes[t]
	return ok
}

// Section 描述模板结构中的一个有序区块。
type Section struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     SectionType `json:"type"`
	Required bool        `json:"required"`
	Order    int         `json:"order"`
	MaxItems *int        `json:"max_items,omitempty"`
}

// ValidateStructure 校验模板结构：区块 ID 唯一、类型合法。
func ValidateStructure(sections []Section) error {
	seen := make(map[string]struct{}, len(sections))
	for _, section := range sections {
		if section.ID == "" {
			return ErrSectionIDRequired
		}
		if _, dup := seen[section.ID]; dup {
			return ErrDuplicateSectionID
		}
		seen[section.ID] = struct{}{}
		if !ValidSectionType(section.Type) {
			return ErrInvalidSectionType
		}
	}
	return nil
}
