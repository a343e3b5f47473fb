package models

import "fmt"

// ForeignKeyRef points at the column a foreign key references.
type ForeignKeyRef struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (r ForeignKeyRef) String() string {
	if r.Schema == "" {
		return fmt.Sprintf("%s.%s", r.Table, r.Column)
	}
	return fmt.Sprintf("%s.%s.%s", r.Schema, r.Table, r.Column)
}

// ColumnDescriptor describes one reflected column.
type ColumnDescriptor struct {
	Name         string          `json:"name"`
	DatabaseType string          `json:"databaseType"`
	DeclaredType DeclaredType    `json:"declaredType"`
	IsPrimaryKey bool            `json:"isPrimaryKey"`
	Nullable     bool            `json:"nullable"`
	ForeignKeys  []ForeignKeyRef `json:"foreignKeys,omitempty"`
}

// SchemaCatalog is the ordered column catalog of one table. Column order is the
// reflected order and is the default selection order.
type SchemaCatalog struct {
	Schema  string
	Table   string
	columns []ColumnDescriptor
	index   map[string]int
}

// NewSchemaCatalog copies columns into a new catalog. Duplicate names keep the first
// occurrence.
func NewSchemaCatalog(schema, table string, columns []ColumnDescriptor) *SchemaCatalog {
	catalog := &SchemaCatalog{
		Schema:  schema,
		Table:   table,
		columns: make([]ColumnDescriptor, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, column := range columns {
		if _, exists := catalog.index[column.Name]; exists {
			continue
		}
		column.ForeignKeys = append([]ForeignKeyRef(nil), column.ForeignKeys...)
		catalog.index[column.Name] = len(catalog.columns)
		catalog.columns = append(catalog.columns, column)
	}
	return catalog
}

// QualifiedName returns "schema.table", or just the table when no schema is set.
func (c *SchemaCatalog) QualifiedName() string {
	return QualifiedName(c.Schema, c.Table)
}

func (c *SchemaCatalog) Len() int {
	return len(c.columns)
}

// Columns returns a copy of the descriptors in catalog order.
func (c *SchemaCatalog) Columns() []ColumnDescriptor {
	return append([]ColumnDescriptor(nil), c.columns...)
}

// ColumnNames returns the column names in catalog order.
func (c *SchemaCatalog) ColumnNames() []string {
	names := make([]string, len(c.columns))
	for i, column := range c.columns {
		names[i] = column.Name
	}
	return names
}

func (c *SchemaCatalog) Lookup(name string) (ColumnDescriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return ColumnDescriptor{}, false
	}
	return c.columns[i], true
}

// Column resolves name or fails with ErrUnknownColumn.
func (c *SchemaCatalog) Column(name string) (ColumnDescriptor, error) {
	column, ok := c.Lookup(name)
	if !ok {
		return ColumnDescriptor{}, fmt.Errorf("%w: %q not in %s", ErrUnknownColumn, name, c.QualifiedName())
	}
	return column, nil
}

func QualifiedName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
