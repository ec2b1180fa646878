// Package naming turns SQL table and column names into the entity, resource,
// field and association names the REST API exposes.
package naming

// Config holds naming customization options.
type Config struct {
	// PluralOverrides maps singular -> custom plural, e.g. {"person": "people"}.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular, e.g. {"data": "datum"}.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// EntityOverrides maps table name -> entity name.
	EntityOverrides map[string]string `mapstructure:"entity_overrides"`
}

// DefaultConfig returns an empty configuration.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
		EntityOverrides:   make(map[string]string),
	}
}
