package cli

import "log/slog"

// logTarget projects effects as structured log lines. The run command
// uses it so every applied effect is visible on stderr; a real frontend
// would substitute its own binding.EffectTarget.
type logTarget struct{}

func (logTarget) SetText(componentID, text string) {
	slog.Info("effect", "kind", "text", "component", componentID, "text", text)
}

func (logTarget) SetMarkup(componentID, markup string) {
	slog.Info("effect", "kind", "markup", "component", componentID, "markup", markup)
}

func (logTarget) SetValue(componentID, value string) {
	slog.Info("effect", "kind", "value", "component", componentID, "value", value)
}

func (logTarget) SetClass(componentID, class string, present bool) {
	slog.Info("effect", "kind", "class", "component", componentID, "class", class, "present", present)
}

func (logTarget) SetBoolAttr(componentID, attr string, on bool) {
	slog.Info("effect", "kind", "attr", "component", componentID, "attr", attr, "on", on)
}
