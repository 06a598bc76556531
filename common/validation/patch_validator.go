package validation

import (
	"fmt"
	"strings"
)

// PatchValidator checks the shape of JSON Patch operations before they are
// applied to metadata documents
type PatchValidator struct {
	maxOperations int
}

// NewPatchValidator creates a new patch validator
func NewPatchValidator() *PatchValidator {
	return &PatchValidator{maxOperations: 10000}
}

// ValidateOperations validates all patch operations
func (v *PatchValidator) ValidateOperations(operations []map[string]interface{}) error {
	if len(operations) > v.maxOperations {
		return fmt.Errorf("patch validation failed: %d operations exceeds limit of %d", len(operations), v.maxOperations)
	}

	for i, op := range operations {
		if err := v.validateOperation(op, i); err != nil {
			return err
		}
	}

	return nil
}

func (v *PatchValidator) validateOperation(op map[string]interface{}, index int) error {
	opType, ok := op["op"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'op' field", index)
	}

	path, ok := op["path"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'path' field", index)
	}
	if err := validatePointer(path); err != nil {
		return fmt.Errorf("operation %d: path: %w", index, err)
	}

	switch opType {
	case "add", "replace", "test":
		if _, ok := op["value"]; !ok {
			return fmt.Errorf("operation %d: 'value' required for %s operation", index, opType)
		}

	case "remove":
		if path == "" {
			return fmt.Errorf("operation %d: cannot remove the document root", index)
		}

	case "move", "copy":
		from, ok := op["from"].(string)
		if !ok {
			return fmt.Errorf("operation %d: 'from' required for %s operation", index, opType)
		}
		if err := validatePointer(from); err != nil {
			return fmt.Errorf("operation %d: from: %w", index, err)
		}
		if opType == "move" && strings.HasPrefix(path+"/", from+"/") {
			return fmt.Errorf("operation %d: cannot move %s into itself", index, from)
		}

	default:
		return fmt.Errorf("operation %d: unsupported operation type: %s", index, opType)
	}

	return nil
}

// validatePointer checks RFC 6901 syntax
func validatePointer(p string) error {
	if p == "" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("pointer %q must start with '/'", p)
	}
	for i := 0; i < len(p); i++ {
		if p[i] != '~' {
			continue
		}
		if i+1 >= len(p) || (p[i+1] != '0' && p[i+1] != '1') {
			return fmt.Errorf("pointer %q has invalid escape", p)
		}
	}
	return nil
}
