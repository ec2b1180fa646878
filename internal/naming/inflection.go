package naming

import (
	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of word, honoring PluralOverrides.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize returns the singular of word, honoring SingularOverrides.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}
