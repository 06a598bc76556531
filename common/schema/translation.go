package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/validation"
)

// translationKeyword is the schema keyword holding translation rules, keyed by scheme:
//
//	"x-translation": {
//	  "saeon/datacite4": [
//	    {"op": "add", "path": "/titles/-", "value": "{'title': data.title}", "when": "has(data.title)"}
//	  ]
//	}
//
// value and when are CEL expressions evaluated with the instance bound to data.
const translationKeyword = "x-translation"

type ruleSpec struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value string `json:"value,omitempty"`
	When  string `json:"when,omitempty"`
}

type rule struct {
	spec  ruleSpec
	value cel.Program
	when  cel.Program
}

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("data", cel.DynType))
})

var jsonValueType = reflect.TypeOf(&structpb.Value{})

func compileRules(schemaDoc []byte) (map[string][]*rule, error) {
	var doc struct {
		Translation map[string][]ruleSpec `json:"x-translation"`
	}
	if err := json.Unmarshal(schemaDoc, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", translationKeyword, err)
	}
	if len(doc.Translation) == 0 {
		return nil, nil
	}

	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}

	validator := validation.NewPatchValidator()
	rules := make(map[string][]*rule, len(doc.Translation))

	for scheme, specs := range doc.Translation {
		shapes := make([]map[string]interface{}, 0, len(specs))
		for _, spec := range specs {
			shape := map[string]interface{}{"op": spec.Op, "path": spec.Path}
			if spec.From != "" {
				shape["from"] = spec.From
			}
			if spec.Value != "" {
				shape["value"] = spec.Value
			}
			shapes = append(shapes, shape)
		}
		if err := validator.ValidateOperations(shapes); err != nil {
			return nil, fmt.Errorf("scheme %s: %w", scheme, err)
		}

		compiledRules := make([]*rule, 0, len(specs))
		for i, spec := range specs {
			r := &rule{spec: spec}
			if spec.Value != "" {
				if r.value, err = compileExpr(env, spec.Value); err != nil {
					return nil, fmt.Errorf("scheme %s rule %d value: %w", scheme, i, err)
				}
			}
			if spec.When != "" {
				if r.when, err = compileExpr(env, spec.When); err != nil {
					return nil, fmt.Errorf("scheme %s rule %d when: %w", scheme, i, err)
				}
			}
			compiledRules = append(compiledRules, r)
		}
		rules[scheme] = compiledRules
	}

	return rules, nil
}

func compileExpr(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

// translate evaluates the rules for scheme. A schema without rules for the
// scheme contributes an empty patch.
func (c *compiled) translate(data map[string]any, scheme string) ([]Operation, error) {
	rules := c.rules[scheme]
	if len(rules) == 0 {
		return []Operation{}, nil
	}

	input, err := normalize(data)
	if err != nil {
		return nil, err
	}
	activation := map[string]any{"data": input}

	ops := make([]Operation, 0, len(rules))
	for i, r := range rules {
		if r.when != nil {
			out, _, err := r.when.Eval(activation)
			if err != nil {
				return nil, errs.Wrap(errs.KindUnprocessable, err, "%s rule %d condition", c.entry.ID, i)
			}
			ok, isBool := out.Value().(bool)
			if !isBool {
				return nil, errs.Unprocessable("%s rule %d condition returned %T, want bool", c.entry.ID, i, out.Value())
			}
			if !ok {
				continue
			}
		}

		op := Operation{Op: r.spec.Op, Path: r.spec.Path, From: r.spec.From}
		if r.value != nil {
			out, _, err := r.value.Eval(activation)
			if err != nil {
				return nil, errs.Wrap(errs.KindUnprocessable, err, "%s rule %d value", c.entry.ID, i)
			}
			if op.Value, err = toJSON(out); err != nil {
				return nil, errs.Wrap(errs.KindUnprocessable, err, "%s rule %d value", c.entry.ID, i)
			}
		}
		ops = append(ops, op)
	}

	return ops, nil
}

func toJSON(val ref.Val) (any, error) {
	native, err := val.ConvertToNative(jsonValueType)
	if err != nil {
		return nil, err
	}
	pb, ok := native.(*structpb.Value)
	if !ok {
		return nil, fmt.Errorf("unexpected CEL result %T", native)
	}
	return pb.AsInterface(), nil
}
