package engine

// ToggleSentinel is the request value that cycles a key instead of
// setting it. It is resolved against the current committed value,
// never against a staged overlay value.
const ToggleSentinel = "toggle"

// resolveToggle computes the next value for a toggled key.
//
//   - an unset key toggles to "true"
//   - boolean-like values flip between "true" and "false"
//   - other values cycle between "" and the binding's alternate marker
//
// A binding with no declared alternate treats an empty current value as
// boolean-like and toggles it to "true".
func resolveToggle(current string, set bool, alternate string) string {
	if !set {
		return "true"
	}

	switch current {
	case "true":
		return "false"
	case "false":
		return "true"
	}

	if current == "" {
		if alternate != "" {
			return alternate
		}
		return "true"
	}
	return ""
}
