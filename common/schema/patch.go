package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/opendataplatform/registry/common/validation"
)

// Operation is a single JSON Patch operation
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value"`
}

// ApplyPatch applies ops to doc in order and returns the patched document.
// doc is not modified.
//
// Add operations resolve array inserts: an index at or past the end of an
// array appends, and missing intermediate objects and arrays are created.
func ApplyPatch(doc map[string]any, ops []Operation) (map[string]any, error) {
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	var shapes []map[string]interface{}
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if err := validation.NewPatchValidator().ValidateOperations(shapes); err != nil {
		return nil, err
	}

	current, err := deepCopy(doc)
	if err != nil {
		return nil, err
	}

	for i, op := range ops {
		if op.Op == "add" && op.Path != "" {
			tokens := splitPointer(op.Path)
			node, resolved, err := resolveInsert(current, tokens, nil)
			if err != nil {
				return nil, fmt.Errorf("operation %d (%s %s): %w", i, op.Op, op.Path, err)
			}
			current = node.(map[string]any)
			op.Path = joinPointer(resolved)
		}

		if current, err = applyOne(current, op); err != nil {
			return nil, fmt.Errorf("operation %d (%s %s): %w", i, op.Op, op.Path, err)
		}
	}

	return current, nil
}

func applyOne(doc map[string]any, op Operation) (map[string]any, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	patchJSON, err := json.Marshal([]Operation{op})
	if err != nil {
		return nil, fmt.Errorf("encode operation: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}

	patched, err := patch.Apply(docJSON)
	if err != nil {
		return nil, fmt.Errorf("apply operation: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, fmt.Errorf("decode patched document: %w", err)
	}
	return out, nil
}

// resolveInsert walks tokens through node, creating missing containers along
// the way, and returns the rewritten tokens. The final token of an array
// target becomes "-" when it points past the end.
func resolveInsert(node any, tokens, resolved []string) (any, []string, error) {
	tok := tokens[0]

	if len(tokens) == 1 {
		switch node.(type) {
		case map[string]any, []any:
		default:
			return nil, nil, fmt.Errorf("cannot traverse %T at %q", node, tok)
		}
		if arr, ok := node.([]any); ok && tok != "-" {
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 {
				return nil, nil, fmt.Errorf("invalid array index %q", tok)
			}
			if idx >= len(arr) {
				tok = "-"
			}
		}
		return node, append(resolved, tok), nil
	}

	next := tokens[1]

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[tok]
		if !ok || child == nil {
			child = newContainer(next)
		}
		child, out, err := resolveInsert(child, tokens[1:], append(resolved, tok))
		if err != nil {
			return nil, nil, err
		}
		n[tok] = child
		return n, out, nil

	case []any:
		idx := len(n)
		if tok != "-" {
			var err error
			if idx, err = strconv.Atoi(tok); err != nil || idx < 0 {
				return nil, nil, fmt.Errorf("invalid array index %q", tok)
			}
		}
		if idx >= len(n) {
			n = append(n, newContainer(next))
			idx = len(n) - 1
		}
		if n[idx] == nil {
			n[idx] = newContainer(next)
		}
		child, out, err := resolveInsert(n[idx], tokens[1:], append(resolved, strconv.Itoa(idx)))
		if err != nil {
			return nil, nil, err
		}
		n[idx] = child
		return n, out, nil

	default:
		return nil, nil, fmt.Errorf("cannot traverse %T at %q", node, tok)
	}
}

func newContainer(next string) any {
	if next == "-" {
		return []any{}
	}
	if _, err := strconv.Atoi(next); err == nil {
		return []any{}
	}
	return map[string]any{}
}

func splitPointer(path string) []string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return parts
}

func joinPointer(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(t, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

func deepCopy(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return out, nil
}
