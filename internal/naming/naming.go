package naming

import (
	"log/slog"
	"strings"
)

// Namer derives API names from SQL names. It pluralizes and singularizes
// through the inflection library, resolves collisions and suffixes names the
// filter syntax reserves.
//
// A Namer is stateful: create one per registry build, or call Reset.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration.
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with the default configuration.
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset forgets every registered name.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// EntityName converts a table name to a singular PascalCase entity name.
// Example: "order_lines" -> "OrderLine".
func (n *Namer) EntityName(table string) string {
	if override, ok := n.config.EntityOverrides[table]; ok && override != "" {
		return override
	}
	return toPascalCase(n.Singularize(strings.ToLower(table)))
}

// ResourceName converts a table name to the camelCase URL segment.
// Example: "order_lines" -> "orderLines".
func (n *Namer) ResourceName(table string) string {
	return toCamelCase(table)
}

// FieldName converts a column name to a camelCase field name.
// Example: "created_at" -> "createdAt".
func (n *Namer) FieldName(column string) string {
	return toCamelCase(column)
}

// ManyToOneName names a to-one association after its FK column with the
// key suffix stripped. Example: "created_by_user_id" -> "createdByUser".
func (n *Namer) ManyToOneName(fkColumn string) string {
	name := fkColumn
	lower := strings.ToLower(name)
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return n.FieldName(name)
}

// OneToManyName names the inverse side of a FK. With a single FK from the
// source table it is the pluralized source table; otherwise the FK name
// prefixes it. Example: ("posts", "editor_id", false) -> "editorPosts".
func (n *Namer) OneToManyName(sourceTable, fkColumn string, onlyFK bool) string {
	plural := n.Pluralize(n.FieldName(sourceTable))
	if onlyFK {
		return plural
	}
	prefix := n.ManyToOneName(fkColumn)
	if plural == "" {
		return prefix
	}
	return prefix + strings.ToUpper(plural[:1]) + plural[1:]
}

// ManyToManyName names an association through a pure junction table after
// the pluralized target table. Example: "tag" -> "tags".
func (n *Namer) ManyToManyName(targetTable string) string {
	return n.Pluralize(n.FieldName(targetTable))
}

// RegisterEntity resolves the entity and resource names for table.
func (n *Namer) RegisterEntity(table string) (entity, resource string) {
	entity = n.resolver.RegisterEntity(n.EntityName(table), table)

	resource = n.ResourceName(table)
	if resource == "" {
		resource = table
	}
	resource = n.resolver.RegisterResource(resource, table)
	return entity, resource
}

// RegisterColumnField resolves the field name for a column. Columns register
// before associations, so they keep their natural names.
func (n *Namer) RegisterColumnField(entity, column string) string {
	return n.resolver.RegisterField(entity, n.safeField(n.FieldName(column)), "column:"+column)
}

// RegisterAssociation resolves an association name. A clash with an existing
// field gets "Ref" for to-one and "Rel" for to-many associations.
func (n *Namer) RegisterAssociation(entity, name, source string, toOne bool) string {
	name = n.safeField(name)
	if n.resolver.FieldExists(entity, name) {
		if toOne {
			name += "Ref"
		} else {
			name += "Rel"
		}
	}
	return n.resolver.RegisterField(entity, name, "association:"+source)
}

func (n *Namer) safeField(name string) string {
	if !isReservedFieldName(name) {
		return name
	}
	safe := strings.ReplaceAll(name, ".", "_")
	if strings.HasSuffix(strings.ToLower(safe), orSuffix) || safe == "" {
		safe += "_"
	}
	n.logger.Warn("field name is reserved by the filter syntax, renamed",
		slog.String("original", name),
		slog.String("renamed", safe),
	)
	return safe
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' || r == '-' })
}

// toPascalCase converts snake_case to PascalCase.
func toPascalCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, "")
}

// toCamelCase converts snake_case to camelCase. An all-caps first word is
// lowered: "URL_path" -> "urlPath".
func toCamelCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		if i == 0 {
			if strings.ToUpper(w) == w {
				words[i] = strings.ToLower(w)
			} else {
				words[i] = strings.ToLower(w[:1]) + w[1:]
			}
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, "")
}
