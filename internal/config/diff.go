package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is true when the character sketch, traits, or
	// boundaries differ. Persona changes apply on the next turn; the
	// knowledge directory is re-read only on restart.
	PersonaChanged bool

	// BudgetsChanged is true when prompt budget tuning differs.
	BudgetsChanged bool
}

// Any reports whether the diff contains at least one hot-reloadable change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PersonaChanged || d.BudgetsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Persona.Name != new.Persona.Name ||
		old.Persona.Description != new.Persona.Description ||
		!equalStrings(old.Persona.Traits, new.Persona.Traits) ||
		!equalStrings(old.Persona.Boundaries, new.Persona.Boundaries) {
		d.PersonaChanged = true
	}

	if old.Budgets != new.Budgets {
		d.BudgetsChanged = true
	}

	return d
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
