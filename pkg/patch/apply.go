package patch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	jsondiff "github.com/wI2L/jsondiff"
)

// Apply merges d into doc. Fields absent from the delta are left untouched; a
// JSON null removes the field.
func Apply(doc []byte, d Delta) ([]byte, error) {
	if d.IsEmpty() {
		return doc, nil
	}
	mergePatch, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out, err := jsonpatch.MergePatch(doc, mergePatch)
	if err != nil {
		return nil, fmt.Errorf("patch: apply: %w", err)
	}
	return out, nil
}

// ChangedFields compares two documents and returns the sorted top-level field
// names that differ.
func ChangedFields(before, after []byte) ([]string, error) {
	ops, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return nil, fmt.Errorf("patch: diff: %w", err)
	}
	if len(ops) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	var paths []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &paths); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		name := topLevelField(p.Path)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func topLevelField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	pointer = strings.ReplaceAll(pointer, "~1", "/")
	return strings.ReplaceAll(pointer, "~0", "~")
}
