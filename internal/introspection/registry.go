package introspection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"restfilter/internal/metadata"
	"restfilter/internal/naming"
	"restfilter/internal/sqltype"

	"go.opentelemetry.io/otel/attribute"
)

// BuildRegistry derives entities and associations from schema:
//
//   - every table or view with a single-column identifier becomes an entity
//   - each single-column foreign key becomes a many-to-one association on the
//     owning table and a one-to-many association on the referenced table
//   - each pure junction table becomes a many-to-many association on both
//     sides and is not exposed itself
//
// Composite keys are skipped with a warning.
func BuildRegistry(ctx context.Context, schema *Schema, namer *naming.Namer, logger *slog.Logger) (*metadata.Registry, error) {
	_, span := startSpan(ctx, "introspection.build_registry")
	defer span.End()

	if logger == nil {
		logger = slog.Default()
	}
	if namer == nil {
		namer = naming.Default()
	}
	if schema == nil {
		return metadata.NewRegistry()
	}

	b := &registryBuilder{
		namer:       namer,
		logger:      logger,
		byTable:     make(map[string]*metadata.Entity),
		columnField: make(map[string]map[string]string),
	}

	candidates := make(map[string]Column)
	for _, table := range schema.Tables {
		id, ok := identifierColumn(table)
		if !ok {
			continue
		}
		candidates[table.Name] = id
	}
	junctions := findJunctions(schema, func(name string) bool {
		_, ok := candidates[name]
		return ok
	})

	for _, table := range schema.Tables {
		if _, ok := junctions[table.Name]; ok {
			continue
		}
		id, ok := candidates[table.Name]
		if !ok {
			logger.Warn("skipping table without a single-column identifier",
				slog.String("table", table.Name),
				slog.Int("primary_key_columns", len(PrimaryKeyColumns(table))),
			)
			continue
		}
		b.addEntity(table, id)
	}

	for _, table := range schema.Tables {
		if _, ok := b.byTable[table.Name]; ok {
			b.addForeignKeys(table)
		}
	}
	for _, name := range sortedKeys(junctions) {
		b.addJunction(junctions[name])
	}

	registry, err := metadata.NewRegistry(b.entities...)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	span.SetAttributes(
		attribute.Int("registry.entities", registry.Len()),
		attribute.Int("registry.junctions", len(junctions)),
	)
	return registry, nil
}

type registryBuilder struct {
	namer    *naming.Namer
	logger   *slog.Logger
	entities []*metadata.Entity
	byTable  map[string]*metadata.Entity
	// columnField maps table -> column -> field name.
	columnField map[string]map[string]string
}

func (b *registryBuilder) addEntity(table Table, id Column) {
	name, resource := b.namer.RegisterEntity(table.Name)
	entity := &metadata.Entity{
		Name:     name,
		Table:    table.Name,
		Resource: resource,
	}
	fields := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		fieldName := b.namer.RegisterColumnField(name, col.Name)
		fields[col.Name] = fieldName
		entity.Fields = append(entity.Fields, metadata.Field{
			Name:     fieldName,
			Column:   col.Name,
			DataType: col.DataType,
			Kind:     sqltype.Classify(col.DataType),
			Nullable: col.IsNullable,
			Values:   col.Values,
		})
	}
	entity.Identifier = fields[id.Name]

	b.entities = append(b.entities, entity)
	b.byTable[table.Name] = entity
	b.columnField[table.Name] = fields
}

func (b *registryBuilder) addForeignKeys(table Table) {
	owner := b.byTable[table.Name]
	constraints := ForeignKeyConstraints(table)

	perTarget := make(map[string]int)
	for _, fk := range constraints {
		perTarget[fk.ReferencedTable]++
	}

	for _, fk := range constraints {
		target, ok := b.byTable[fk.ReferencedTable]
		if !ok {
			continue
		}
		if !fk.SingleColumn() {
			b.logger.Warn("skipping composite foreign key",
				slog.String("table", table.Name),
				slog.String("constraint", fk.ConstraintName),
				slog.Any("columns", fk.ColumnNames),
			)
			continue
		}
		local, remote := fk.ColumnNames[0], fk.ReferencedColumns[0]
		if _, ok := b.columnField[target.Table][remote]; !ok {
			continue
		}

		toOne := b.namer.RegisterAssociation(owner.Name, b.namer.ManyToOneName(local), fk.ConstraintName, true)
		toMany := b.namer.RegisterAssociation(target.Name,
			b.namer.OneToManyName(table.Name, local, perTarget[fk.ReferencedTable] == 1), fk.ConstraintName, false)

		owner.Associations = append(owner.Associations, metadata.Association{
			Name:         toOne,
			Target:       target.Name,
			Cardinality:  metadata.ManyToOne,
			LocalColumn:  local,
			RemoteColumn: remote,
			MappedBy:     toMany,
		})
		target.Associations = append(target.Associations, metadata.Association{
			Name:         toMany,
			Target:       owner.Name,
			Cardinality:  metadata.OneToMany,
			LocalColumn:  remote,
			RemoteColumn: local,
			MappedBy:     toOne,
		})
	}
}

func (b *registryBuilder) addJunction(j junction) {
	left := b.byTable[j.Left.ReferencedTable]
	right := b.byTable[j.Right.ReferencedTable]

	leftName := b.namer.RegisterAssociation(left.Name, b.namer.ManyToManyName(right.Table), j.Table, false)
	rightName := b.namer.RegisterAssociation(right.Name, b.namer.ManyToManyName(left.Table), j.Table, false)

	left.Associations = append(left.Associations, metadata.Association{
		Name:             leftName,
		Target:           right.Name,
		Cardinality:      metadata.ManyToMany,
		LocalColumn:      j.Left.ReferencedColumns[0],
		RemoteColumn:     j.Right.ReferencedColumns[0],
		MappedBy:         rightName,
		JoinTable:        j.Table,
		JoinLocalColumn:  j.Left.ColumnNames[0],
		JoinRemoteColumn: j.Right.ColumnNames[0],
	})
	right.Associations = append(right.Associations, metadata.Association{
		Name:             rightName,
		Target:           left.Name,
		Cardinality:      metadata.ManyToMany,
		LocalColumn:      j.Right.ReferencedColumns[0],
		RemoteColumn:     j.Left.ReferencedColumns[0],
		MappedBy:         leftName,
		JoinTable:        j.Table,
		JoinLocalColumn:  j.Right.ColumnNames[0],
		JoinRemoteColumn: j.Left.ColumnNames[0],
	})
}

func sortedKeys(m map[string]junction) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
