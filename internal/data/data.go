// Package data implements the data cascade handed to render functions.
//
// Layers are merged from lowest to highest precedence. Maps merge
// recursively; any other value in a higher layer replaces the lower one.
package data

import (
	"maps"
)

// Data is one layer of the cascade, or the merged result.
type Data map[string]any

// Merge returns a new Data combining layers in order, later layers winning.
// Inputs are never modified.
func Merge(layers ...Data) Data {
	out := Data{}
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst Data, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := asMap(v)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		if existing, ok := asMap(dst[k]); ok {
			merged := Data{}
			maps.Copy(merged, existing)
			mergeInto(merged, srcMap)
			dst[k] = map[string]any(merged)
			continue
		}
		cp := Data{}
		mergeInto(cp, srcMap)
		dst[k] = map[string]any(cp)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Data:
		return m, true
	default:
		return nil, false
	}
}

// Clone returns a deep copy of nested maps in d.
func (d Data) Clone() Data {
	return Merge(d)
}

// String returns the string value stored at key, or "".
func (d Data) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}
