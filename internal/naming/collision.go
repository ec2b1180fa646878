package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered names and resolves duplicates by
// appending a numeric suffix.
type CollisionResolver struct {
	entities  map[string]string            // entity name -> source table
	resources map[string]string            // resource name -> source table
	fields    map[string]map[string]string // entity -> field name -> source
	logger    *slog.Logger
}

// NewCollisionResolver creates an empty resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		entities:  make(map[string]string),
		resources: make(map[string]string),
		fields:    make(map[string]map[string]string),
		logger:    logger,
	}
}

// RegisterEntity claims an entity name for table.
func (c *CollisionResolver) RegisterEntity(name, table string) string {
	return c.claim(name, c.entities, "table:"+table)
}

// RegisterResource claims a resource (URL segment) name for table.
func (c *CollisionResolver) RegisterResource(name, table string) string {
	return c.claim(name, c.resources, "table:"+table)
}

// RegisterField claims a field or association name on entity.
func (c *CollisionResolver) RegisterField(entity, name, source string) string {
	if c.fields[entity] == nil {
		c.fields[entity] = make(map[string]string)
	}
	return c.claim(name, c.fields[entity], source)
}

// FieldExists reports whether name is already taken on entity.
func (c *CollisionResolver) FieldExists(entity, name string) bool {
	_, ok := c.fields[entity][name]
	return ok
}

func (c *CollisionResolver) claim(name string, seen map[string]string, source string) string {
	existing, taken := seen[name]
	if !taken {
		seen[name] = source
		return name
	}

	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", existing),
		slog.String("new_source", source),
	)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = source
			return candidate
		}
	}
}
