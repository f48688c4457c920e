package binding

import "sort"

// EffectTarget receives applied effects.
//
// The engine never talks to a target directly; it goes through
// Registry.Apply so that effect kinds stay a closed, checked set.
// Implementations are expected to be cheap and non-blocking: asynchronous
// work belongs outside the engine and re-enters via change requests.
type EffectTarget interface {
	SetText(componentID, text string)
	SetMarkup(componentID, markup string)
	SetValue(componentID, value string)
	SetClass(componentID, class string, present bool)
	SetBoolAttr(componentID, attr string, on bool)
}

// NopTarget discards all effects. Used when a caller only needs state
// synchronization and watcher notification, without projection.
type NopTarget struct{}

func (NopTarget) SetText(string, string)           {}
func (NopTarget) SetMarkup(string, string)         {}
func (NopTarget) SetValue(string, string)          {}
func (NopTarget) SetClass(string, string, bool)    {}
func (NopTarget) SetBoolAttr(string, string, bool) {}

// MemoryTarget records applied effects in memory.
//
// It backs tests and the CLI's state inspection: after a batch of requests
// the recorded projection is what a real rendering target would show.
type MemoryTarget struct {
	texts   map[string]string
	markups map[string]string
	values  map[string]string
	classes map[string]map[string]bool
	attrs   map[string]map[string]bool
}

// NewMemoryTarget creates an empty in-memory target.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{
		texts:   make(map[string]string),
		markups: make(map[string]string),
		values:  make(map[string]string),
		classes: make(map[string]map[string]bool),
		attrs:   make(map[string]map[string]bool),
	}
}

func (m *MemoryTarget) SetText(componentID, text string) {
	m.texts[componentID] = text
}

func (m *MemoryTarget) SetMarkup(componentID, markup string) {
	m.markups[componentID] = markup
}

func (m *MemoryTarget) SetValue(componentID, value string) {
	m.values[componentID] = value
}

func (m *MemoryTarget) SetClass(componentID, class string, present bool) {
	if m.classes[componentID] == nil {
		m.classes[componentID] = make(map[string]bool)
	}
	if present {
		m.classes[componentID][class] = true
	} else {
		delete(m.classes[componentID], class)
	}
}

func (m *MemoryTarget) SetBoolAttr(componentID, attr string, on bool) {
	if m.attrs[componentID] == nil {
		m.attrs[componentID] = make(map[string]bool)
	}
	if on {
		m.attrs[componentID][attr] = true
	} else {
		delete(m.attrs[componentID], attr)
	}
}

// Text returns the projected text content of a component.
func (m *MemoryTarget) Text(componentID string) string {
	return m.texts[componentID]
}

// Markup returns the projected markup content of a component.
func (m *MemoryTarget) Markup(componentID string) string {
	return m.markups[componentID]
}

// Value returns the projected input value of a component.
func (m *MemoryTarget) Value(componentID string) string {
	return m.values[componentID]
}

// HasClass reports whether a component currently carries a class.
func (m *MemoryTarget) HasClass(componentID, class string) bool {
	return m.classes[componentID][class]
}

// Classes returns a component's class set in sorted order.
func (m *MemoryTarget) Classes(componentID string) []string {
	out := make([]string, 0, len(m.classes[componentID]))
	for class := range m.classes[componentID] {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Attr reports whether a boolean attribute is currently on.
func (m *MemoryTarget) Attr(componentID, attr string) bool {
	return m.attrs[componentID][attr]
}
