package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_DispatchRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	var order []string
	r.Subscribe("toggle.v", func(_, _ string) { order = append(order, "first") })
	r.Subscribe("toggle.v", func(_, _ string) { order = append(order, "second") })
	r.Subscribe("toggle.v", func(_, _ string) { order = append(order, "third") })

	failed := r.Dispatch("toggle.v", "true")

	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRegistry_DispatchPassesCommittedValue(t *testing.T) {
	r := NewRegistry()

	var gotKey, gotValue string
	r.Subscribe("sidebar.class", func(key, value string) {
		gotKey = key
		gotValue = value
	})

	r.Dispatch("sidebar.class", "hidden")

	assert.Equal(t, "sidebar.class", gotKey)
	assert.Equal(t, "hidden", gotValue)
}

func TestRegistry_DispatchOnlyMatchingKey(t *testing.T) {
	r := NewRegistry()

	calls := 0
	r.Subscribe("a.v", func(_, _ string) { calls++ })

	r.Dispatch("b.v", "1")
	assert.Equal(t, 0, calls)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry()

	calls := 0
	h := r.Subscribe("a.v", func(_, _ string) { calls++ })

	r.Dispatch("a.v", "1")
	r.Unsubscribe(h)
	r.Dispatch("a.v", "2")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Count("a.v"))
}

func TestRegistry_UnsubscribeTwiceIsNoop(t *testing.T) {
	r := NewRegistry()

	h1 := r.Subscribe("a.v", func(_, _ string) {})
	h2 := r.Subscribe("a.v", func(_, _ string) {})

	r.Unsubscribe(h1)
	r.Unsubscribe(h1) // must not disturb h2

	assert.Equal(t, 1, r.Count("a.v"))
	r.Unsubscribe(h2)
	assert.Equal(t, 0, r.Count("a.v"))
}

func TestRegistry_UnsubscribeZeroHandle(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("a.v", func(_, _ string) {})

	assert.NotPanics(t, func() { r.Unsubscribe(Handle{}) })
	assert.Equal(t, 1, r.Count("a.v"))
}

func TestRegistry_PanicIsolation(t *testing.T) {
	r := NewRegistry()

	var order []string
	r.Subscribe("a.v", func(_, _ string) { order = append(order, "before") })
	r.Subscribe("a.v", func(_, _ string) { panic("watcher exploded") })
	r.Subscribe("a.v", func(_, _ string) { order = append(order, "after") })

	failed := r.Dispatch("a.v", "1")

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"before", "after"}, order,
		"a throwing callback never blocks its siblings")
}

func TestRegistry_SubscribeMidDispatchNotInvoked(t *testing.T) {
	r := NewRegistry()

	lateCalls := 0
	r.Subscribe("a.v", func(_, _ string) {
		r.Subscribe("a.v", func(_, _ string) { lateCalls++ })
	})

	r.Dispatch("a.v", "1")
	assert.Equal(t, 0, lateCalls, "callbacks added mid-dispatch wait for the next pass")

	r.Dispatch("a.v", "2")
	assert.Equal(t, 1, lateCalls)
}

func TestRegistry_UnsubscribeSiblingMidDispatch(t *testing.T) {
	r := NewRegistry()

	siblingCalls := 0
	var hSibling Handle
	r.Subscribe("a.v", func(_, _ string) { r.Unsubscribe(hSibling) })
	hSibling = r.Subscribe("a.v", func(_, _ string) { siblingCalls++ })

	r.Dispatch("a.v", "1")

	assert.Equal(t, 0, siblingCalls, "callbacks unsubscribed mid-dispatch are skipped")
}
