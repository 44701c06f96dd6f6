package design

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustJSON(t *testing.T, raw string) Config {
	t.Helper()
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return cfg
}

func TestMergeIdentityLaws(t *testing.T) {
	base := mustJSON(t, `{"colors":{"primary":"#111111"},"spacing":{"page":24}}`)

	if got := Merge(base, nil); !reflect.DeepEqual(got, base) {
		t.Fatalf("merge(base, nil) = %v, want %v", got, base)
	}
	if got := Merge(base, Config{}); !reflect.DeepEqual(got, base) {
		t.Fatalf("merge(base, {}) = %v, want %v", got, base)
	}
	if got := Merge(nil, base); !reflect.DeepEqual(got, base) {
		t.Fatalf("merge(nil, override) = %v, want %v", got, base)
	}
}

func TestMergeNestedOverride(t *testing.T) {
	base := mustJSON(t, `{
		"colors": {"primary": "#111111", "secondary": "#222222"},
		"typography": {"fontFamily": "Inter", "fontSize": 12}
	}`)
	override := mustJSON(t, `{"colors": {"primary": "#eeeeee"}}`)

	got := Merge(base, override)

	colors := got["colors"].(map[string]any)
	if colors["primary"] != "#eeeeee" {
		t.Errorf("colors.primary = %v, want #eeeeee", colors["primary"])
	}
	if colors["secondary"] != "#222222" {
		t.Errorf("colors.secondary = %v, want untouched #222222", colors["secondary"])
	}
	typography := got["typography"].(map[string]any)
	if typography["fontFamily"] != "Inter" {
		t.Errorf("typography.fontFamily = %v, want untouched Inter", typography["fontFamily"])
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := mustJSON(t, `{"colors":{"primary":"#111111"},"icons":{"set":"lucide"}}`)
	override := mustJSON(t, `{"colors":{"primary":"#eeeeee"},"effects":{"shadow":true}}`)

	baseSnapshot := mustJSON(t, `{"colors":{"primary":"#111111"},"icons":{"set":"lucide"}}`)
	overrideSnapshot := mustJSON(t, `{"colors":{"primary":"#eeeeee"},"effects":{"shadow":true}}`)

	result := Merge(base, override)

	if !reflect.DeepEqual(base, baseSnapshot) {
		t.Fatalf("base mutated: %v", base)
	}
	if !reflect.DeepEqual(override, overrideSnapshot) {
		t.Fatalf("override mutated: %v", override)
	}

	// 结果与输入也不能共享子对象。
	result["colors"].(map[string]any)["primary"] = "#000000"
	if base["colors"].(map[string]any)["primary"] != "#111111" {
		t.Fatal("result shares colors map with base")
	}
	if override["colors"].(map[string]any)["primary"] != "#eeeeee" {
		t.Fatal("result shares colors map with override")
	}
}

func TestMergeArrayAndScalarReplaceWholesale(t *testing.T) {
	base := mustJSON(t, `{"contentStyles":{"bullets":["dot","dash"]},"borders":{"width":2}}`)
	override := mustJSON(t, `{"contentStyles":{"bullets":["square"]},"borders":{"width":"thin"}}`)

	got := Merge(base, override)

	bullets := got["contentStyles"].(map[string]any)["bullets"].([]any)
	if len(bullets) != 1 || bullets[0] != "square" {
		t.Errorf("bullets = %v, want wholesale replacement [square]", bullets)
	}
	if got["borders"].(map[string]any)["width"] != "thin" {
		t.Errorf("borders.width = %v, want thin", got["borders"].(map[string]any)["width"])
	}
}

func TestMergeExplicitNullOverwrites(t *testing.T) {
	base := mustJSON(t, `{"colors":{"accent":"#ff0000"},"effects":{"shadow":true}}`)
	override := mustJSON(t, `{"colors":{"accent":null}}`)

	got := Merge(base, override)

	colors := got["colors"].(map[string]any)
	value, present := colors["accent"]
	if !present {
		t.Fatal("accent key dropped, want explicit null")
	}
	if value != nil {
		t.Fatalf("accent = %v, want nil (explicit clear)", value)
	}
	if got["effects"].(map[string]any)["shadow"] != true {
		t.Fatal("unrelated key disturbed by null override")
	}
}

func TestMergeObjectOverScalarCreatesSubObject(t *testing.T) {
	base := mustJSON(t, `{"spacing":"compact"}`)
	override := mustJSON(t, `{"spacing":{"page":32}}`)

	got := Merge(base, override)

	spacing, ok := got["spacing"].(map[string]any)
	if !ok {
		t.Fatalf("spacing = %T, want object", got["spacing"])
	}
	if spacing["page"] != float64(32) {
		t.Errorf("spacing.page = %v, want 32", spacing["page"])
	}
}

func TestMergeDisjointOverridesCompose(t *testing.T) {
	base := mustJSON(t, `{"colors":{"primary":"#111111"},"typography":{"fontFamily":"Inter"}}`)
	o1 := mustJSON(t, `{"colors":{"primary":"#eeeeee"}}`)
	o2 := mustJSON(t, `{"typography":{"fontFamily":"Lora"}}`)

	sequential := Merge(Merge(base, o1), o2)
	combined := Merge(base, Merge(o1, o2))

	if !reflect.DeepEqual(sequential, combined) {
		t.Fatalf("disjoint overrides do not compose: %v vs %v", sequential, combined)
	}
}

func TestMergeDeeplyNested(t *testing.T) {
	base := mustJSON(t, `{"a":{"b":{"c":{"d":1,"keep":true}}}}`)
	override := mustJSON(t, `{"a":{"b":{"c":{"d":2}}}}`)

	got := Merge(base, override)

	c := got["a"].(map[string]any)["b"].(map[string]any)["c"].(map[string]any)
	if c["d"] != float64(2) {
		t.Errorf("a.b.c.d = %v, want 2", c["d"])
	}
	if c["keep"] != true {
		t.Errorf("a.b.c.keep = %v, want preserved true", c["keep"])
	}
}
