package samplecontent

import (
	"context"
	"testing"

	"cvStudio/internal/template"
)

type fakeLibrary struct {
	byID   map[uint]*Item
	byType map[string][]Item
}

func (l *fakeLibrary) ByID(_ context.Context, id uint) (*Item, error) {
	return l.byID[id], nil
}

func (l *fakeLibrary) ByContentType(_ context.Context, contentType string, targeting Targeting) ([]Item, error) {
	items := l.byType[contentType]
	if targeting.ExperienceLevel == "" {
		return items, nil
	}
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ExperienceLevel == "" || item.ExperienceLevel == targeting.ExperienceLevel {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func TestResolveExplicitMappingWins(t *testing.T) {
	library := &fakeLibrary{
		byID: map[uint]*Item{
			42: {ID: 42, ContentType: "experience"},
		},
		byType: map[string][]Item{
			"experience": {{ID: 7, ContentType: "experience"}},
		},
	}
	resolver := NewResolver(library)

	tpl := TemplateView{
		SpecificSampleContent: map[string][]uint{"sec-1": {42}},
	}
	section := template.Section{ID: "sec-1", Type: template.SectionExperience}

	item, err := resolver.Resolve(context.Background(), tpl, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item == nil || item.ID != 42 {
		t.Fatalf("item = %+v, want mapped id 42 over default pool", item)
	}
}

func TestResolveFallsBackToTypePool(t *testing.T) {
	library := &fakeLibrary{
		byID: map[uint]*Item{},
		byType: map[string][]Item{
			"experience": {
				{ID: 7, ContentType: "experience"},
				{ID: 8, ContentType: "experience"},
			},
		},
	}
	resolver := NewResolver(library)

	section := template.Section{ID: "sec-1", Type: template.SectionExperience}

	item, err := resolver.Resolve(context.Background(), TemplateView{}, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item == nil || item.ID != 7 {
		t.Fatalf("item = %+v, want first pool entry (id 7)", item)
	}
}

func TestResolveDeadMappingFallsThrough(t *testing.T) {
	library := &fakeLibrary{
		byID: map[uint]*Item{},
		byType: map[string][]Item{
			"skills": {{ID: 3, ContentType: "skills"}},
		},
	}
	resolver := NewResolver(library)

	tpl := TemplateView{
		SpecificSampleContent: map[string][]uint{"sec-9": {999}},
	}
	section := template.Section{ID: "sec-9", Type: template.SectionSkills}

	item, err := resolver.Resolve(context.Background(), tpl, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item == nil || item.ID != 3 {
		t.Fatalf("item = %+v, want pool fallback after dead mapping", item)
	}
}

func TestResolveCustomSectionNeverFallsBack(t *testing.T) {
	library := &fakeLibrary{
		byID: map[uint]*Item{
			11: {ID: 11, ContentType: "custom"},
		},
		byType: map[string][]Item{
			"custom": {{ID: 12, ContentType: "custom"}},
		},
	}
	resolver := NewResolver(library)

	section := template.Section{ID: "sec-c", Type: template.SectionCustom}

	// 无映射：必须返回空，即使池里有 custom 类型的条目。
	item, err := resolver.Resolve(context.Background(), TemplateView{}, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil for unmapped custom section", item)
	}

	// 有映射：正常命中。
	tpl := TemplateView{SpecificSampleContent: map[string][]uint{"sec-c": {11}}}
	item, err = resolver.Resolve(context.Background(), tpl, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item == nil || item.ID != 11 {
		t.Fatalf("item = %+v, want explicitly mapped id 11", item)
	}
}

func TestResolveNoMatchReturnsNil(t *testing.T) {
	resolver := NewResolver(&fakeLibrary{byID: map[uint]*Item{}, byType: map[string][]Item{}})

	section := template.Section{ID: "sec-1", Type: template.SectionSummary}
	item, err := resolver.Resolve(context.Background(), TemplateView{}, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil (renderer handles empty state)", item)
	}
}

func TestResolveTargetingPreFilter(t *testing.T) {
	library := &fakeLibrary{
		byID: map[uint]*Item{},
		byType: map[string][]Item{
			"summary": {
				{ID: 1, ContentType: "summary", ExperienceLevel: "senior"},
				{ID: 2, ContentType: "summary", ExperienceLevel: "entry"},
			},
		},
	}
	resolver := NewResolver(library)

	tpl := TemplateView{Targeting: Targeting{ExperienceLevel: "entry"}}
	section := template.Section{ID: "sec-s", Type: template.SectionSummary}

	item, err := resolver.Resolve(context.Background(), tpl, section)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item == nil || item.ID != 2 {
		t.Fatalf("item = %+v, want facet-filtered first match (id 2)", item)
	}
}

func TestMatchesTargeting(t *testing.T) {
	item := Item{
		Industries:      []string{"tech", "finance"},
		ExperienceLevel: "senior",
	}

	if !matchesTargeting(item, Targeting{}) {
		t.Error("empty targeting must match everything")
	}
	if !matchesTargeting(item, Targeting{Industries: []string{"tech"}}) {
		t.Error("overlapping industry must match")
	}
	if matchesTargeting(item, Targeting{Industries: []string{"legal"}}) {
		t.Error("disjoint industry must not match")
	}
	if matchesTargeting(item, Targeting{ExperienceLevel: "entry"}) {
		t.Error("mismatched experience level must not match")
	}
	if !matchesTargeting(Item{}, Targeting{Industries: []string{"legal"}, ExperienceLevel: "entry"}) {
		t.Error("untargeted item must match any targeting")
	}
}
