package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetUnsetKey(t *testing.T) {
	s := NewStore()

	v, ok := s.Get("sidebar.class")

	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestStore_Seed(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{
		"toggle.v":      "true",
		"sidebar.class": "",
	})

	v, ok := s.Get("toggle.v")
	require.True(t, ok)
	assert.Equal(t, "true", v)

	v, ok = s.Get("sidebar.class")
	require.True(t, ok)
	assert.Equal(t, "", v, "empty string is a set value, not unset")

	assert.Equal(t, 2, s.Len())
}

func TestStore_SeedReplacesContents(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"a.v": "1", "b.v": "2"})
	s.Seed(map[string]string{"c.v": "3"})

	_, ok := s.Get("a.v")
	assert.False(t, ok, "seed must replace, not merge")
	assert.Equal(t, 1, s.Len())
}

func TestStore_KeysSorted(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"b.v": "2", "a.v": "1", "c.v": "3"})

	assert.Equal(t, []string{"a.v", "b.v", "c.v"}, s.Keys())
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"a.v": "1"})

	snap := s.Snapshot()
	snap["a.v"] = "mutated"

	v, _ := s.Get("a.v")
	assert.Equal(t, "1", v, "mutating the snapshot must not touch the store")
}

func TestOverlay_ProposeNewKey(t *testing.T) {
	s := NewStore()
	o := NewOverlay(s)

	changed := o.Propose("toggle.v", "true")

	assert.True(t, changed)
	assert.Equal(t, 1, o.Len())

	// Not visible in the store until commit.
	_, ok := s.Get("toggle.v")
	assert.False(t, ok)
}

func TestOverlay_ProposeCommittedValueIsNoop(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"toggle.v": "true"})
	o := NewOverlay(s)

	changed := o.Propose("toggle.v", "true")

	assert.False(t, changed)
	assert.Equal(t, 0, o.Len())
}

func TestOverlay_ReProposeCommittedValueUnstages(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"toggle.v": "true"})
	o := NewOverlay(s)

	require.True(t, o.Propose("toggle.v", "false"))
	changed := o.Propose("toggle.v", "true")

	assert.False(t, changed)
	assert.Equal(t, 0, o.Len(), "staging back to the committed value cancels the staging")
	assert.Equal(t, []string{}, o.Commit())
}

func TestOverlay_CommitReturnsChangedKeysInStagingOrder(t *testing.T) {
	s := NewStore()
	o := NewOverlay(s)

	require.True(t, o.Propose("toggle.v", "false"))
	require.True(t, o.Propose("sidebar.class", "hidden"))
	require.True(t, o.Propose("toggle.v", "true")) // re-propose keeps position

	changed := o.Commit()

	assert.Equal(t, []string{"toggle.v", "sidebar.class"}, changed)

	v, _ := s.Get("toggle.v")
	assert.Equal(t, "true", v)
	v, _ = s.Get("sidebar.class")
	assert.Equal(t, "hidden", v)

	assert.Equal(t, 0, o.Len(), "commit clears the overlay")
}

func TestOverlay_Abort(t *testing.T) {
	s := NewStore()
	o := NewOverlay(s)

	require.True(t, o.Propose("toggle.v", "true"))
	o.Abort()

	assert.Equal(t, 0, o.Len())
	_, ok := s.Get("toggle.v")
	assert.False(t, ok)
	assert.Empty(t, o.Commit(), "abort discards staged values")
}

func TestOverlay_MergedViewShadowsStore(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"toggle.v": "false", "sidebar.class": "hidden"})
	o := NewOverlay(s)

	require.True(t, o.Propose("toggle.v", "true"))
	view := o.Merged()

	v, ok := view.Get("toggle.v")
	require.True(t, ok)
	assert.Equal(t, "true", v, "staged value shadows committed value")

	v, ok = view.Get("sidebar.class")
	require.True(t, ok)
	assert.Equal(t, "hidden", v, "unstaged keys fall through to the store")

	_, ok = view.Get("other.v")
	assert.False(t, ok)
}

func TestOverlay_MergedSnapshot(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"a.v": "1", "b.v": "2"})
	o := NewOverlay(s)

	require.True(t, o.Propose("b.v", "changed"))
	require.True(t, o.Propose("c.v", "new"))

	snap := o.MergedSnapshot()

	assert.Equal(t, map[string]string{"a.v": "1", "b.v": "changed", "c.v": "new"}, snap)

	// The merged snapshot is a copy.
	snap["a.v"] = "mutated"
	v, _ := s.Get("a.v")
	assert.Equal(t, "1", v)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := map[string]string{"toggle.v": "true", "sidebar.class": ""}
	b := map[string]string{"sidebar.class": "", "toggle.v": "true"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DistinguishesSnapshots(t *testing.T) {
	a := map[string]string{"toggle.v": "true"}
	b := map[string]string{"toggle.v": "false"}
	empty := map[string]string{}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(empty))
}

func TestFingerprint_KeyValueBoundary(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc".
	a := map[string]string{"ab": "c"}
	b := map[string]string{"a": "bc"}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_UnicodeNormalization(t *testing.T) {
	// U+00E9 (precomposed) vs U+0065 U+0301 (decomposed) are the same text.
	a := map[string]string{"label.text": "caf\u00e9"}
	b := map[string]string{"label.text": "cafe\u0301"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_UnicodeNormalizedKeys(t *testing.T) {
	a := map[string]string{"caf\u00e9.text": "open"}
	b := map[string]string{"cafe\u0301.text": "open"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_NonNFCKeyValuesDistinguished(t *testing.T) {
	// A decomposed key must still hash its value: snapshots differing only
	// in the value under such a key are distinct.
	a := map[string]string{"cafe\u0301.text": "1"}
	b := map[string]string{"cafe\u0301.text": "2"}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
