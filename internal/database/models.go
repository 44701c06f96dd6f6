package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。令牌由外部认证服务签发，
// 这里仅保留归属关系与角色。
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;size:64"`
	// Role 取值 "admin" / "user"；模板与示例内容管理仅限 admin。
	Role         string        `gorm:"size:16;default:user"`
	PasswordHash string        `gorm:"size:255"`
	Resumes      []Resume      `gorm:"constraint:OnDelete:CASCADE"`
	CVs          []CV          `gorm:"constraint:OnDelete:CASCADE"`
	CoverLetters []CoverLetter `gorm:"constraint:OnDelete:CASCADE"`
}

// Template 表示可复用的文档蓝图：基础设计配置 + 结构 + 内嵌变体集合。
// Variants 整列以 JSONB 存储（[]template.Variant），
// 变体操作为读改写整列，并发写同一模板时后写覆盖先写。
type Template struct {
	gorm.Model
	Name         string         `gorm:"size:255"`
	Category     string         `gorm:"size:64;index"`
	DocumentType string         `gorm:"size:32;index"` // resume | cv | cover_letter
	DesignConfig datatypes.JSON `gorm:"type:jsonb"`
	Structure    datatypes.JSON `gorm:"type:jsonb"` // []template.Section
	Variants     datatypes.JSON `gorm:"type:jsonb"` // []template.Variant
	// SpecificSampleContent: sectionId -> [contentId, ...] 的显式映射。
	SpecificSampleContent datatypes.JSON `gorm:"type:jsonb"`
	// 目标画像（示例内容兜底匹配时的过滤维度）。
	Industries      datatypes.JSON `gorm:"type:jsonb"` // []string
	Specializations datatypes.JSON `gorm:"type:jsonb"` // []string
	JobTitles       datatypes.JSON `gorm:"type:jsonb"` // []string
	ExperienceLevel string         `gorm:"size:32"`
	PreviewImageURL string         `gorm:"size:512"`
	IsPublished     bool           `gorm:"default:false;index"`
	UserID          uint           `gorm:"index"`
	User            User           `gorm:"constraint:OnDelete:CASCADE"`
	Tags            []Tag          `gorm:"many2many:template_tags;"`
}

// SampleContentItem 是独立生命周期的示例内容条目，
// 通过模板上的显式映射或按区块类型兜底匹配。
type SampleContentItem struct {
	gorm.Model
	ContentType     string         `gorm:"size:32;index"` // template.SectionType
	Content         datatypes.JSON `gorm:"type:jsonb"`
	Industries      datatypes.JSON `gorm:"type:jsonb"` // []string
	Specializations datatypes.JSON `gorm:"type:jsonb"` // []string
	JobTitles       datatypes.JSON `gorm:"type:jsonb"` // []string
	ExperienceLevel string         `gorm:"size:32"`
	Quality         int            `gorm:"default:0"`
	Source          string         `gorm:"size:64"`
	IsActive        bool           `gorm:"default:true;index"`
	IsApproved      bool           `gorm:"default:false;index"`
}

// Tag 用于模板的分类检索。
type Tag struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:64"`
	Slug string `gorm:"uniqueIndex;size:64"`
}

// Collection 是管理员维护的模板合集。
type Collection struct {
	gorm.Model
	Name        string     `gorm:"size:255"`
	Description string     `gorm:"size:1024"`
	UserID      uint       `gorm:"index"`
	Templates   []Template `gorm:"many2many:collection_templates;"`
}

// Resume 表示用户创建的简历内容。
type Resume struct {
	gorm.Model
	Title      string         `gorm:"size:255"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	TemplateID *uint          `gorm:"index"` // 可空：允许空白文档
	VariantID  string         `gorm:"size:64"`
	Version    int            `gorm:"default:1"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
}

// CV 与 Resume 生命周期一致，内容负载独立。
type CV struct {
	gorm.Model
	Title      string         `gorm:"size:255"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	TemplateID *uint          `gorm:"index"`
	VariantID  string         `gorm:"size:64"`
	Version    int            `gorm:"default:1"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
}

// CoverLetter 求职信，生命周期同上。
type CoverLetter struct {
	gorm.Model
	Title      string         `gorm:"size:255"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	TemplateID *uint          `gorm:"index"`
	VariantID  string         `gorm:"size:64"`
	Version    int            `gorm:"default:1"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
}

// 三种文档共用一套列结构，显式表名避免 CV 被错误复数化。
func (Resume) TableName() string      { return "resumes" }
func (CV) TableName() string          { return "cvs" }
func (CoverLetter) TableName() string { return "cover_letters" }

// Asset 记录用户上传到对象存储的图片（模板封面等）。
type Asset struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	ObjectKey string `gorm:"uniqueIndex;size:512"`
}

// AllModels 返回 AutoMigrate 所需的模型列表。
func AllModels() []any {
	return []any{
		&User{},
		&Template{},
		&SampleContentItem{},
		&Tag{},
		&Collection{},
		&Resume{},
		&CV{},
		&CoverLetter{},
		&Asset{},
	}
}
