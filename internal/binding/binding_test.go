package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		key       string
		component string
		property  string
		wantErr   bool
	}{
		{"sidebar.class", "sidebar", "class", false},
		{"toggle.v", "toggle", "v", false},
		{"a.b.c", "a", "b.c", false},
		{"nodot", "", "", true},
		{".prop", "", "", true},
		{"comp.", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			comp, prop, err := ParseKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.component, comp)
			assert.Equal(t, tt.property, prop)
		})
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, kind := range []EffectKind{KindText, KindMarkup, KindValue, KindClass, KindBoolAttr} {
		parsed, err := KindFromString(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := KindFromString("hologram")
	assert.Error(t, err)
}

func TestRegistry_DeclareRejectsMisuse(t *testing.T) {
	tests := []struct {
		name string
		decl Decl
	}{
		{"malformed key", Decl{Key: "nodot", Kind: KindText}},
		{"unknown kind", Decl{Key: "a.v", Kind: EffectKind(99)}},
		{"zero kind", Decl{Key: "a.v"}},
		{"class without class name", Decl{Key: "a.v", Kind: KindClass}},
		{"attr outside closed set", Decl{Key: "a.v", Kind: KindBoolAttr, Attr: "hidden"}},
		{"attr missing", Decl{Key: "a.v", Kind: KindBoolAttr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			assert.Error(t, r.Declare(tt.decl))
			assert.False(t, r.Has(tt.decl.Key))
		})
	}
}

func TestRegistry_DeclareDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Declare(Decl{Key: "a.v", Kind: KindText}))
	assert.Error(t, r.Declare(Decl{Key: "a.v", Kind: KindValue}))
}

func TestRegistry_ClassAlternateDefaultsToClass(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Declare(Decl{Key: "sidebar.class", Kind: KindClass, Class: "hidden"}))

	d, ok := r.Get("sidebar.class")
	require.True(t, ok)
	assert.Equal(t, "hidden", d.Alternate)
}

func TestRegistry_ApplyText(t *testing.T) {
	target := NewMemoryTarget()
	r := NewRegistry(target)
	require.NoError(t, r.Declare(Decl{Key: "status.text", Kind: KindText}))

	require.NoError(t, r.Apply("status.text", "saved"))
	assert.Equal(t, "saved", target.Text("status"))
}

func TestRegistry_ApplyMarkupAndValue(t *testing.T) {
	target := NewMemoryTarget()
	r := NewRegistry(target)
	require.NoError(t, r.Declare(Decl{Key: "panel.html", Kind: KindMarkup}))
	require.NoError(t, r.Declare(Decl{Key: "search.value", Kind: KindValue}))

	require.NoError(t, r.Apply("panel.html", "<p>done</p>"))
	require.NoError(t, r.Apply("search.value", "widgets"))

	assert.Equal(t, "<p>done</p>", target.Markup("panel"))
	assert.Equal(t, "widgets", target.Value("search"))
}

func TestRegistry_ApplyClassMembership(t *testing.T) {
	target := NewMemoryTarget()
	r := NewRegistry(target)
	require.NoError(t, r.Declare(Decl{Key: "sidebar.class", Kind: KindClass, Class: "hidden"}))

	require.NoError(t, r.Apply("sidebar.class", "hidden"))
	assert.True(t, target.HasClass("sidebar", "hidden"))

	require.NoError(t, r.Apply("sidebar.class", ""))
	assert.False(t, target.HasClass("sidebar", "hidden"),
		"empty committed value removes class membership")
}

func TestRegistry_ApplyBoolAttr(t *testing.T) {
	target := NewMemoryTarget()
	r := NewRegistry(target)
	require.NoError(t, r.Declare(Decl{Key: "agree.checked", Kind: KindBoolAttr, Attr: "checked"}))

	require.NoError(t, r.Apply("agree.checked", "true"))
	assert.True(t, target.Attr("agree", "checked"))

	require.NoError(t, r.Apply("agree.checked", "false"))
	assert.False(t, target.Attr("agree", "checked"))

	require.NoError(t, r.Apply("agree.checked", "anything-else"))
	assert.False(t, target.Attr("agree", "checked"), "only exactly \"true\" turns the attribute on")
}

func TestRegistry_ApplyEventOnly(t *testing.T) {
	target := NewMemoryTarget()
	r := NewRegistry(target)
	require.NoError(t, r.Declare(Decl{Key: "button.clicked", Kind: KindText, EventOnly: true}))

	require.NoError(t, r.Apply("button.clicked", "true"))
	assert.Equal(t, "", target.Text("button"), "event-only keys apply no effect")
}

func TestRegistry_ApplyUndeclared(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Apply("ghost.v", "1"))
}
