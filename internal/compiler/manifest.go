package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/unisonui/unison/internal/binding"
)

// ConfigDef is a named whole-system configuration as declared.
// Values may contain the "*" wildcard.
type ConfigDef struct {
	Name   string
	Values map[string]string
}

// TransitionDef is a directed transition edge as declared.
// When is an optional guard expression over committed values.
type TransitionDef struct {
	From string
	To   string
	When string
}

// Manifest is a compiled declaration manifest.
//
// Configurations and Transitions preserve declaration order; the matcher
// and the edge selector are both first-match-wins.
type Manifest struct {
	Bindings       []binding.Decl
	Configurations []ConfigDef
	Transitions    []TransitionDef
}

// CompileManifest parses a CUE value into a Manifest.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the manifest root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`bindings: {...}, configurations: [...]`)
//	m, err := CompileManifest(v)
func CompileManifest(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{}

	bindingsVal := v.LookupPath(cue.ParsePath("bindings"))
	if !bindingsVal.Exists() {
		return nil, &CompileError{
			Field:   "bindings",
			Message: "bindings are required",
			Pos:     v.Pos(),
		}
	}
	decls, err := compileBindings(bindingsVal)
	if err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, &CompileError{
			Field:   "bindings",
			Message: "at least one binding is required",
			Pos:     bindingsVal.Pos(),
		}
	}
	m.Bindings = decls

	configsVal := v.LookupPath(cue.ParsePath("configurations"))
	if !configsVal.Exists() {
		return nil, &CompileError{
			Field:   "configurations",
			Message: "configurations are required",
			Pos:     v.Pos(),
		}
	}
	m.Configurations, err = compileConfigurations(configsVal)
	if err != nil {
		return nil, err
	}
	if len(m.Configurations) == 0 {
		return nil, &CompileError{
			Field:   "configurations",
			Message: "at least one configuration is required",
			Pos:     configsVal.Pos(),
		}
	}

	// Transitions are optional: a manifest without them simply rejects
	// every explicit transition request.
	transitionsVal := v.LookupPath(cue.ParsePath("transitions"))
	if transitionsVal.Exists() {
		m.Transitions, err = compileTransitions(transitionsVal)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// compileBindings parses the bindings struct, one Decl per key.
func compileBindings(v cue.Value) ([]binding.Decl, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []binding.Decl
	for iter.Next() {
		d, err := compileBinding(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}

	return decls, nil
}

func compileBinding(key string, v cue.Value) (binding.Decl, error) {
	d := binding.Decl{Key: key}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return d, &CompileError{
			Field:   fmt.Sprintf("bindings.%s.kind", key),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kindStr, err := kindVal.String()
	if err != nil {
		return d, formatCUEError(err)
	}
	kind, err := binding.KindFromString(kindStr)
	if err != nil {
		return d, &CompileError{
			Field:   fmt.Sprintf("bindings.%s.kind", key),
			Message: err.Error(),
			Pos:     kindVal.Pos(),
		}
	}
	d.Kind = kind

	if d.Class, err = optionalString(v, "class"); err != nil {
		return d, err
	}
	if d.Attr, err = optionalString(v, "attr"); err != nil {
		return d, err
	}
	if d.Alternate, err = optionalString(v, "alternate"); err != nil {
		return d, err
	}

	eventVal := v.LookupPath(cue.ParsePath("eventOnly"))
	if eventVal.Exists() {
		if d.EventOnly, err = eventVal.Bool(); err != nil {
			return d, formatCUEError(err)
		}
	}

	return d, nil
}

// compileConfigurations parses the ordered configuration list.
func compileConfigurations(v cue.Value) ([]ConfigDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var configs []ConfigDef
	for iter.Next() {
		item := iter.Value()

		name, err := requiredString(item, "name")
		if err != nil {
			return nil, err
		}

		valuesVal := item.LookupPath(cue.ParsePath("values"))
		if !valuesVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("configurations.%s.values", name),
				Message: "values are required",
				Pos:     item.Pos(),
			}
		}

		valuesIter, err := valuesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}

		values := make(map[string]string)
		for valuesIter.Next() {
			val, err := valuesIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			values[valuesIter.Selector().Unquoted()] = val
		}

		configs = append(configs, ConfigDef{Name: name, Values: values})
	}

	return configs, nil
}

// compileTransitions parses the ordered transition edge list.
func compileTransitions(v cue.Value) ([]TransitionDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var transitions []TransitionDef
	for iter.Next() {
		item := iter.Value()

		var tr TransitionDef
		if tr.From, err = requiredString(item, "from"); err != nil {
			return nil, err
		}
		if tr.To, err = requiredString(item, "to"); err != nil {
			return nil, err
		}
		if tr.When, err = optionalString(item, "when"); err != nil {
			return nil, err
		}

		transitions = append(transitions, tr)
	}

	return transitions, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", nil
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
