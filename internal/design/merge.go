package design

// Config 表示一棵设计配置树（colors/typography/spacing 等），
// 叶子为 string/number/bool，中间节点为普通对象。
// 与 JSONB 列解码后的 map[string]any 形状保持一致。
type Config = map[string]any

// Merge 将 override 递归合并到 base 上，返回全新的配置树。
// 规则：
//   - override 为空：返回 base 的副本；
//   - base 为空：返回 override 的副本；
//   - override 的值是普通对象时递归合并；
//   - 其余情况（标量、数组、nil）整体替换对应的 base 值，
//     数组不做逐元素合并；显式 null 同样覆盖（用于清空字段）。
//
// 两个入参都不会被修改。
func Merge(base, override Config) Config {
	if len(override) == 0 {
		return Clone(base)
	}
	if len(base) == 0 {
		return Clone(override)
	}

	result := make(Config, len(base)+len(override))
	for key, value := range base {
		result[key] = cloneValue(value)
	}

	for key, value := range override {
		overrideMap, overrideIsMap := value.(map[string]any)
		if !overrideIsMap {
			result[key] = cloneValue(value)
			continue
		}

		baseMap, baseIsMap := result[key].(map[string]any)
		if !baseIsMap {
			baseMap = nil
		}
		result[key] = Merge(baseMap, overrideMap)
	}

	return result
}

// Clone 深拷贝配置树，nil 输入返回空 map 以便调用方直接写入。
func Clone(cfg Config) Config {
	result := make(Config, len(cfg))
	for key, value := range cfg {
		result[key] = cloneValue(value)
	}
	return result
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = cloneValue(item)
		}
		return items
	default:
		// 标量（string/float64/bool/nil 等）按值复制即可。
		return v
	}
}
