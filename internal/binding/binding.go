// Package binding declares the externally visible effect attached to each
// binding key and applies committed values through an EffectTarget.
//
// The effect-kind set is closed: a declaration carries exactly one of the
// five kinds below, checked exhaustively at declaration time and at apply
// time. Open-ended property-name dispatch is deliberately absent.
//
// The registry is stateless from the engine's perspective: the engine only
// depends on the Apply(key, value) contract and never reads effects back.
package binding

import (
	"fmt"
	"strings"
)

// EffectKind identifies the observable effect a committed value produces.
type EffectKind int

const (
	// KindText projects the value as the component's text content.
	KindText EffectKind = iota + 1
	// KindMarkup projects the value as the component's markup content.
	KindMarkup
	// KindValue projects the value as the component's input value.
	KindValue
	// KindClass toggles membership of one class on the component:
	// present while the committed value is non-empty, absent otherwise.
	KindClass
	// KindBoolAttr sets a boolean attribute (checked, selected or
	// disabled): on while the committed value is exactly "true".
	KindBoolAttr
)

// String returns the declaration-file spelling of the kind.
func (k EffectKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMarkup:
		return "markup"
	case KindValue:
		return "value"
	case KindClass:
		return "class"
	case KindBoolAttr:
		return "attr"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// KindFromString parses a declaration-file kind name.
func KindFromString(s string) (EffectKind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "markup":
		return KindMarkup, nil
	case "value":
		return KindValue, nil
	case "class":
		return KindClass, nil
	case "attr":
		return KindBoolAttr, nil
	default:
		return 0, fmt.Errorf("unknown effect kind %q (want text, markup, value, class or attr)", s)
	}
}

// boolAttrs is the closed set of boolean attributes.
var boolAttrs = map[string]bool{
	"checked":  true,
	"selected": true,
	"disabled": true,
}

// Decl associates a binding key with one effect descriptor.
type Decl struct {
	// Key is the immutable "componentId.propertyName" identifier.
	Key string

	// Kind selects the effect.
	Kind EffectKind

	// Class is the toggled class name. Required for KindClass.
	Class string

	// Attr is the boolean attribute name (checked, selected, disabled).
	// Required for KindBoolAttr.
	Attr string

	// EventOnly marks a pure interaction signal: the key participates in
	// state, matching and watcher notification, but no effect is applied.
	EventOnly bool

	// Alternate is the marker a non-boolean value toggles against (the
	// "toggle" sentinel cycles the value between "" and Alternate).
	// Defaults to Class for KindClass declarations.
	Alternate string
}

// ParseKey splits a binding key into component id and property name.
func ParseKey(key string) (component, property string, err error) {
	component, property, ok := strings.Cut(key, ".")
	if !ok || component == "" || property == "" {
		return "", "", fmt.Errorf("invalid binding key %q: want componentId.propertyName", key)
	}
	return component, property, nil
}

// Registry holds binding declarations and applies committed values.
type Registry struct {
	decls  map[string]Decl
	target EffectTarget
}

// NewRegistry creates a registry applying effects to the given target.
// A nil target is replaced by a no-op target.
func NewRegistry(target EffectTarget) *Registry {
	if target == nil {
		target = NopTarget{}
	}
	return &Registry{
		decls:  make(map[string]Decl),
		target: target,
	}
}

// Declare registers a binding. Declaration-time misuse fails fast:
// malformed keys, duplicate keys, unknown kinds and missing kind-specific
// fields are all rejected before the key can ever be requested.
func (r *Registry) Declare(d Decl) error {
	if _, _, err := ParseKey(d.Key); err != nil {
		return fmt.Errorf("declare binding: %w", err)
	}
	if _, exists := r.decls[d.Key]; exists {
		return fmt.Errorf("declare binding %q: already declared", d.Key)
	}

	switch d.Kind {
	case KindText, KindMarkup, KindValue:
		// No kind-specific fields.
	case KindClass:
		if d.Class == "" {
			return fmt.Errorf("declare binding %q: class kind requires a class name", d.Key)
		}
		if d.Alternate == "" {
			d.Alternate = d.Class
		}
	case KindBoolAttr:
		if !boolAttrs[d.Attr] {
			return fmt.Errorf("declare binding %q: attr must be checked, selected or disabled, got %q", d.Key, d.Attr)
		}
	default:
		return fmt.Errorf("declare binding %q: unknown effect kind %d", d.Key, int(d.Kind))
	}

	r.decls[d.Key] = d
	return nil
}

// Has reports whether a binding key is declared.
func (r *Registry) Has(key string) bool {
	_, ok := r.decls[key]
	return ok
}

// Get returns the declaration for a binding key.
func (r *Registry) Get(key string) (Decl, bool) {
	d, ok := r.decls[key]
	return d, ok
}

// Apply applies one committed (key, value) pair as its declared effect.
//
// Event-only keys apply nothing. Undeclared keys are an error; the engine
// rejects such requests pre-staging, so reaching this is a programming
// error worth surfacing loudly.
func (r *Registry) Apply(key, value string) error {
	d, ok := r.decls[key]
	if !ok {
		return fmt.Errorf("apply %q: binding not declared", key)
	}
	if d.EventOnly {
		return nil
	}

	component, _, err := ParseKey(key)
	if err != nil {
		return err
	}

	switch d.Kind {
	case KindText:
		r.target.SetText(component, value)
	case KindMarkup:
		r.target.SetMarkup(component, value)
	case KindValue:
		r.target.SetValue(component, value)
	case KindClass:
		r.target.SetClass(component, d.Class, value != "")
	case KindBoolAttr:
		r.target.SetBoolAttr(component, d.Attr, value == "true")
	default:
		return fmt.Errorf("apply %q: unknown effect kind %d", key, int(d.Kind))
	}
	return nil
}
