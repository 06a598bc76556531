// Package service implements the registry's business operations. Every
// operation runs in one store transaction, and the audit entry for a mutation
// is written in that same transaction.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
)

// SchemaService validates and translates documents against catalog schemas.
// *schema.Registry implements it.
type SchemaService interface {
	Has(typ schema.Type, id string) bool
	Validate(ctx context.Context, typ schema.Type, id string, data map[string]any) (*schema.Validity, error)
	TranslationPatch(ctx context.Context, typ schema.Type, id string, data map[string]any, scheme string) ([]schema.Operation, error)
	Translate(ctx context.Context, typ schema.Type, id string, data map[string]any, scheme string, ignoreValidity bool) (map[string]any, error)
	Template(ctx context.Context, id string) (map[string]any, error)
	Scheme(ctx context.Context, id string) (string, error)
}

var _ SchemaService = (*schema.Registry)(nil)

// Page selects a window of a listing
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(n int) (int, int) {
	start := min(max(p.Offset, 0), n)
	end := n
	if p.Limit > 0 {
		end = min(start+p.Limit, n)
	}
	return start, end
}

func now() time.Time {
	return time.Now().UTC()
}

// notFound converts a missing-row error into a NotFound domain error
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFound(format, args...)
	}
	return err
}

// invalid returns an Unprocessable error carrying the validity report
func invalid(validity *schema.Validity, format string, args ...any) error {
	return errs.Unprocessable(format, args...).WithDetail(validity.Map())
}

// jsonEqual reports whether two JSON objects encode identically. Map keys are
// sorted by encoding/json, so structurally equal objects compare equal.
func jsonEqual(a, b map[string]any) bool {
	if a == nil {
		a = map[string]any{}
	}
	if b == nil {
		b = map[string]any{}
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
