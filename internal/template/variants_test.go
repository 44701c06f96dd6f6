package template

import (
	"testing"

	"cvStudio/internal/design"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newTestSet(t *testing.T, variants ...Variant) *Set {
	t.Helper()
	set := NewSet(nil)
	for _, v := range variants {
		if _, err := set.Create(v); err != nil {
			t.Fatalf("seed variant %q: %v", v.Name, err)
		}
	}
	return set
}

func countDefaults(set *Set) int {
	count := 0
	for _, v := range set.Variants() {
		if v.IsDefault {
			count++
		}
	}
	return count
}

func TestCreateEnforcesSingleDefault(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "Slate", VariantType: VariantColor, IsDefault: true},
		Variant{Name: "Crimson", VariantType: VariantColor},
	)

	created, err := set.Create(Variant{Name: "Navy", VariantType: VariantColor, IsDefault: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create did not assign an id")
	}
	if countDefaults(set) != 1 {
		t.Fatalf("defaults = %d, want 1", countDefaults(set))
	}
	if set.DefaultID() != created.ID {
		t.Fatalf("default id = %s, want %s", set.DefaultID(), created.ID)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	set := NewSet(nil)
	if _, err := set.Create(Variant{VariantType: VariantColor}); err != ErrVariantNameEmpty {
		t.Errorf("missing name: err = %v, want ErrVariantNameEmpty", err)
	}
	if _, err := set.Create(Variant{Name: "X", VariantType: "pattern"}); err != ErrInvalidVariantType {
		t.Errorf("bad type: err = %v, want ErrInvalidVariantType", err)
	}
}

func TestUpdateShallowPatch(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "Slate", Description: "cool gray", VariantType: VariantColor, SortOrder: 3},
	)
	id := set.Variants()[0].ID

	updated, err := set.Update(id, VariantPatch{Name: strPtr("Graphite")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Graphite" {
		t.Errorf("name = %s, want Graphite", updated.Name)
	}
	if updated.Description != "cool gray" {
		t.Errorf("description = %q, want untouched", updated.Description)
	}
	if updated.SortOrder != 3 {
		t.Errorf("sortOrder = %d, want untouched 3", updated.SortOrder)
	}
}

func TestUpdateDefaultClearsOthers(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, IsDefault: true},
		Variant{Name: "B", VariantType: VariantColor},
	)
	idB := set.Variants()[1].ID

	if _, err := set.Update(idB, VariantPatch{IsDefault: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if countDefaults(set) != 1 || set.DefaultID() != idB {
		t.Fatalf("default = %s (count %d), want only %s", set.DefaultID(), countDefaults(set), idB)
	}
}

func TestUpdateNotFound(t *testing.T) {
	set := NewSet(nil)
	if _, err := set.Update("missing", VariantPatch{}); err != ErrVariantNotFound {
		t.Fatalf("err = %v, want ErrVariantNotFound", err)
	}
}

func TestDeletePromotesLowestSortOrder(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, SortOrder: 0, IsDefault: true},
		Variant{Name: "B", VariantType: VariantColor, SortOrder: 1},
		Variant{Name: "C", VariantType: VariantColor, SortOrder: 2},
	)
	idA := set.Variants()[0].ID
	idB := set.Variants()[1].ID

	if err := set.Delete(idA); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("len = %d, want 2", set.Len())
	}
	if set.DefaultID() != idB {
		t.Fatalf("promoted default = %s, want lowest-sortOrder survivor %s", set.DefaultID(), idB)
	}
}

func TestDeleteNonDefaultLeavesDefaultAlone(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, SortOrder: 0, IsDefault: true},
		Variant{Name: "B", VariantType: VariantColor, SortOrder: 1},
	)
	idA := set.Variants()[0].ID
	idB := set.Variants()[1].ID

	if err := set.Delete(idB); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if set.DefaultID() != idA {
		t.Fatalf("default = %s, want unchanged %s", set.DefaultID(), idA)
	}
}

func TestDeleteNotFound(t *testing.T) {
	set := NewSet(nil)
	if err := set.Delete("missing"); err != ErrVariantNotFound {
		t.Fatalf("err = %v, want ErrVariantNotFound", err)
	}
}

func TestReorderPartialMapLeavesOthersUntouched(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, SortOrder: 0},
		Variant{Name: "B", VariantType: VariantColor, SortOrder: 1},
	)
	idA := set.Variants()[0].ID

	set.Reorder(map[string]int{idA: 3})

	if got := set.Variants()[0].SortOrder; got != 3 {
		t.Errorf("A.sortOrder = %d, want 3", got)
	}
	if got := set.Variants()[1].SortOrder; got != 1 {
		t.Errorf("B.sortOrder = %d, want untouched 1", got)
	}
}

func TestDuplicateSortOrderFromMax(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, SortOrder: 0},
		Variant{Name: "B", VariantType: VariantColor, SortOrder: 1},
		Variant{Name: "C", VariantType: VariantColor, SortOrder: 4},
	)
	idA := set.Variants()[0].ID

	copied, err := set.Duplicate(idA, "A copy", nil)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.SortOrder != 5 {
		t.Errorf("sortOrder = %d, want max+1 = 5", copied.SortOrder)
	}
	if copied.ID == idA {
		t.Error("duplicate reused source id")
	}
}

func TestDuplicateIntoPreviouslyEmptiedSet(t *testing.T) {
	set := newTestSet(t, Variant{Name: "A", VariantType: VariantColor, SortOrder: 7, IsDefault: true})
	idA := set.Variants()[0].ID

	// 先清空再补建，复制时 sortOrder 从 0 起算。
	if err := set.Delete(idA); err != nil {
		t.Fatalf("delete: %v", err)
	}
	created, err := set.Create(Variant{Name: "B", VariantType: VariantColor})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.SortOrder != 0 {
		t.Fatalf("seed sortOrder = %d, want 0", created.SortOrder)
	}

	copied, err := set.Duplicate(created.ID, "B copy", nil)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.SortOrder != 1 {
		t.Errorf("sortOrder = %d, want 1", copied.SortOrder)
	}
}

func TestDuplicateForcesNonDefaultAndMergesModifications(t *testing.T) {
	set := newTestSet(t, Variant{
		Name:        "A",
		VariantType: VariantComplete,
		IsDefault:   true,
		DesignOverrides: design.Config{
			"colors":     map[string]any{"primary": "#eeeeee", "accent": "#ff0000"},
			"typography": map[string]any{"fontFamily": "Lora"},
		},
	})
	idA := set.Variants()[0].ID

	copied, err := set.Duplicate(idA, "A copy", design.Config{
		"colors": map[string]any{"primary": "#000000"},
	})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.IsDefault {
		t.Error("duplicate kept isDefault, want forced false")
	}

	colors := copied.DesignOverrides["colors"].(map[string]any)
	if colors["primary"] != "#000000" {
		t.Errorf("colors.primary = %v, want modification #000000", colors["primary"])
	}
	if colors["accent"] != "#ff0000" {
		t.Errorf("colors.accent = %v, want inherited #ff0000", colors["accent"])
	}
	if copied.DesignOverrides["typography"].(map[string]any)["fontFamily"] != "Lora" {
		t.Error("typography not inherited from source")
	}

	// 复制件与源不共享覆盖对象。
	colors["primary"] = "#123456"
	srcColors := set.Variants()[0].DesignOverrides["colors"].(map[string]any)
	if srcColors["primary"] != "#eeeeee" {
		t.Error("duplicate shares design overrides with source")
	}
}

func TestBulkUpdateLastIDWinsAsSoleDefault(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "A", VariantType: VariantColor, IsDefault: true},
		Variant{Name: "B", VariantType: VariantColor},
		Variant{Name: "C", VariantType: VariantColor},
	)
	idB := set.Variants()[1].ID
	idC := set.Variants()[2].ID

	matched := set.BulkUpdate([]string{idB, idC}, VariantPatch{IsDefault: boolPtr(true)})
	if matched != 2 {
		t.Fatalf("matched = %d, want 2", matched)
	}
	if countDefaults(set) != 1 {
		t.Fatalf("defaults = %d, want exactly 1 after bulk update", countDefaults(set))
	}
	if set.DefaultID() != idC {
		t.Fatalf("default = %s, want last listed id %s", set.DefaultID(), idC)
	}
}

func TestBulkUpdateSkipsUnknownIDs(t *testing.T) {
	set := newTestSet(t, Variant{Name: "A", VariantType: VariantColor})
	idA := set.Variants()[0].ID

	matched := set.BulkUpdate([]string{idA, "missing"}, VariantPatch{IsPremium: boolPtr(true)})
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if !set.Variants()[0].IsPremium {
		t.Error("premium flag not applied")
	}
}

func TestSortedResolvedMergesAndSorts(t *testing.T) {
	base := design.Config{
		"colors":     map[string]any{"primary": "#111111"},
		"typography": map[string]any{"fontFamily": "Inter"},
	}
	set := newTestSet(t,
		Variant{Name: "Later", VariantType: VariantColor, SortOrder: 5},
		Variant{Name: "First", VariantType: VariantColor, SortOrder: 1,
			DesignOverrides: design.Config{"colors": map[string]any{"primary": "#eeeeee"}}},
	)

	resolved, def := set.SortedResolved(base)

	if len(resolved) != 2 {
		t.Fatalf("len = %d, want 2", len(resolved))
	}
	if resolved[0].Name != "First" || resolved[1].Name != "Later" {
		t.Fatalf("order = [%s, %s], want sortOrder ascending", resolved[0].Name, resolved[1].Name)
	}

	first := resolved[0].ComputedDesignConfig
	if first["colors"].(map[string]any)["primary"] != "#eeeeee" {
		t.Error("override not applied in computed config")
	}
	if first["typography"].(map[string]any)["fontFamily"] != "Inter" {
		t.Error("untouched base key missing from computed config")
	}

	// 无显式默认时取排序后的第一个。
	if def == nil || def.Name != "First" {
		t.Fatalf("default = %+v, want first in sorted order", def)
	}
}

func TestSortedResolvedStableOnTies(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "One", VariantType: VariantColor, SortOrder: 2},
		Variant{Name: "Two", VariantType: VariantColor, SortOrder: 2},
		Variant{Name: "Zero", VariantType: VariantColor, SortOrder: 0},
	)

	resolved, _ := set.SortedResolved(nil)
	got := []string{resolved[0].Name, resolved[1].Name, resolved[2].Name}
	want := []string{"Zero", "One", "Two"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v (insertion order on ties)", got, want)
		}
	}
}

func TestSortedResolvedEmptySet(t *testing.T) {
	set := NewSet(nil)
	resolved, def := set.SortedResolved(design.Config{"colors": map[string]any{}})
	if len(resolved) != 0 {
		t.Fatalf("len = %d, want 0", len(resolved))
	}
	if def != nil {
		t.Fatalf("default = %+v, want nil for empty set", def)
	}
}

func TestSortedResolvedPrefersExplicitDefault(t *testing.T) {
	set := newTestSet(t,
		Variant{Name: "First", VariantType: VariantColor, SortOrder: 0},
		Variant{Name: "Chosen", VariantType: VariantColor, SortOrder: 9, IsDefault: true},
	)

	_, def := set.SortedResolved(nil)
	if def == nil || def.Name != "Chosen" {
		t.Fatalf("default = %+v, want explicitly flagged variant", def)
	}
}
