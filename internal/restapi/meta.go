package restapi

import (
	"net/http"

	"restfilter/internal/metadata"
)

type metaField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Values   []string `json:"values,omitempty"`
}

type metaAssociation struct {
	Name           string `json:"name"`
	Target         string `json:"target"`
	TargetResource string `json:"targetResource"`
	Cardinality    string `json:"cardinality"`
	ToMany         bool   `json:"toMany"`
}

type metaResource struct {
	Resource     string            `json:"resource"`
	Entity       string            `json:"entity"`
	Table        string            `json:"table"`
	Identifier   string            `json:"identifier"`
	Fields       []metaField       `json:"fields"`
	Associations []metaAssociation `json:"associations"`
}

func (h *Handler) handleMeta(w http.ResponseWriter, r *http.Request) {
	registry, err := h.catalog.Registry()
	if err != nil {
		ctx, span := h.tracer.Start(r.Context(), "restapi.meta")
		defer span.End()
		h.writeError(ctx, w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": describe(registry)})
}

// describe lists every entity in registry order.
func describe(registry *metadata.Registry) []metaResource {
	entities := registry.Entities()
	out := make([]metaResource, 0, len(entities))
	for _, e := range entities {
		res := metaResource{
			Resource:     e.ResourceName(),
			Entity:       e.Name,
			Table:        e.Table,
			Identifier:   e.Identifier,
			Fields:       make([]metaField, 0, len(e.Fields)),
			Associations: make([]metaAssociation, 0, len(e.Associations)),
		}
		for _, f := range e.Fields {
			res.Fields = append(res.Fields, metaField{
				Name:     f.Name,
				Type:     f.Kind.String(),
				Nullable: f.Nullable,
				Values:   f.Values,
			})
		}
		for _, a := range e.Associations {
			ma := metaAssociation{
				Name:        a.Name,
				Target:      a.Target,
				Cardinality: a.Cardinality.String(),
				ToMany:      a.Cardinality.ToMany(),
			}
			if target, ok := registry.Entity(a.Target); ok {
				ma.TargetResource = target.ResourceName()
			}
			res.Associations = append(res.Associations, ma)
		}
		out = append(out, res)
	}
	return out
}
