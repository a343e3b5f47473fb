package serviceimpl

import (
	"context"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/internal/condition"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/service"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

type schemaService struct {
	DB *gorm.DB
}

var _ service.SchemaService = &schemaService{}
var _ condition.CatalogResolver = &schemaService{}

func NewSchemaService(db *gorm.DB) *schemaService {
	return &schemaService{DB: db}
}

func (s *schemaService) dialect() string {
	return s.DB.Dialector.Name()
}

// sqliteSchema maps the empty schema to sqlite's main database.
func sqliteSchema(schema string) string {
	if schema == "" {
		return "main"
	}
	return schema
}

// tableRef returns the name the table is addressed by in queries.
func (s *schemaService) tableRef(schema, table string) string {
	if s.dialect() == dialectSQLite && sqliteSchema(schema) == "main" {
		return table
	}
	return models.QualifiedName(schema, table)
}

func (s *schemaService) ListSchemas(ctx context.Context) ([]string, error) {
	var schemas []string
	var err error
	switch s.dialect() {
	case dialectSQLite:
		err = s.DB.WithContext(ctx).Raw("SELECT name FROM pragma_database_list ORDER BY seq").Scan(&schemas).Error
	case dialectPostgres:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT schema_name FROM information_schema.schemata ORDER BY schema_name").Scan(&schemas).Error
	default:
		return nil, fmt.Errorf("%w: listing schemas on %s", models.ErrUnsupported, s.dialect())
	}
	if err != nil {
		return nil, classifyError("failed to list schemas", err)
	}
	return schemas, nil
}

func (s *schemaService) CheckSchemaPresence(ctx context.Context, schema string) (bool, error) {
	if schema == "" {
		return true, nil
	}
	schemas, err := s.ListSchemas(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range schemas {
		if name == schema {
			return true, nil
		}
	}
	return false, nil
}

// CreateNewSchema creates schema and reports whether it was created; an existing
// schema yields false.
func (s *schemaService) CreateNewSchema(ctx context.Context, schema string) (bool, error) {
	if s.dialect() != dialectPostgres {
		return false, fmt.Errorf("%w: creating schemas on %s", models.ErrUnsupported, s.dialect())
	}
	present, err := s.CheckSchemaPresence(ctx, schema)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if err := s.DB.WithContext(ctx).Exec("CREATE SCHEMA ?", clause.Table{Name: schema}).Error; err != nil {
		return false, classifyError(fmt.Sprintf("failed to create schema %s", schema), err)
	}
	return true, nil
}

func (s *schemaService) ListTables(ctx context.Context, schema string) ([]string, error) {
	var tables []string
	var err error
	switch s.dialect() {
	case dialectSQLite:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT name FROM pragma_table_list WHERE schema = ? AND type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
			sqliteSchema(schema)).Scan(&tables).Error
	case dialectPostgres:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT table_name FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), current_schema()) AND table_type = 'BASE TABLE' ORDER BY table_name",
			schema).Scan(&tables).Error
	default:
		return nil, fmt.Errorf("%w: listing tables on %s", models.ErrUnsupported, s.dialect())
	}
	if err != nil {
		return nil, classifyError("failed to list tables", err)
	}
	return tables, nil
}

func (s *schemaService) CheckTablePresence(ctx context.Context, schema, table string) (bool, error) {
	var count int64
	var err error
	switch s.dialect() {
	case dialectSQLite:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT count(*) FROM pragma_table_list WHERE schema = ? AND name = ? AND type = 'table'",
			sqliteSchema(schema), table).Scan(&count).Error
	case dialectPostgres:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT count(*) FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), current_schema()) AND table_name = ? AND table_type = 'BASE TABLE'",
			schema, table).Scan(&count).Error
	default:
		return s.DB.WithContext(ctx).Migrator().HasTable(models.QualifiedName(schema, table)), nil
	}
	if err != nil {
		return false, classifyError(fmt.Sprintf("failed to check table %s", models.QualifiedName(schema, table)), err)
	}
	return count > 0, nil
}

// requireTable fails with ErrSchemaNotFound unless the table exists.
func (s *schemaService) requireTable(ctx context.Context, schema, table string) error {
	present, err := s.CheckTablePresence(ctx, schema, table)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%w: %s", models.ErrSchemaNotFound, models.QualifiedName(schema, table))
	}
	return nil
}

type foreignKeyRow struct {
	ColumnName    string
	ForeignSchema string
	ForeignTable  string
	ForeignColumn string
}

func (s *schemaService) foreignKeys(ctx context.Context, schema, table string) (map[string][]models.ForeignKeyRef, error) {
	var rows []foreignKeyRow
	var err error
	switch s.dialect() {
	case dialectSQLite:
		err = s.DB.WithContext(ctx).Raw(
			`SELECT "from" AS column_name, '' AS foreign_schema, "table" AS foreign_table, COALESCE("to", '') AS foreign_column FROM pragma_foreign_key_list(?, ?) ORDER BY id, seq`,
			table, sqliteSchema(schema)).Scan(&rows).Error
	case dialectPostgres:
		err = s.DB.WithContext(ctx).Raw(`
			SELECT kcu.column_name AS column_name,
				ccu.table_schema AS foreign_schema,
				ccu.table_name AS foreign_table,
				ccu.column_name AS foreign_column
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			JOIN information_schema.constraint_column_usage ccu
				ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'FOREIGN KEY'
				AND tc.table_schema = COALESCE(NULLIF(?, ''), current_schema())
				AND tc.table_name = ?
			ORDER BY kcu.ordinal_position`, schema, table).Scan(&rows).Error
	default:
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Sprintf("failed to read foreign keys of %s", models.QualifiedName(schema, table)), err)
	}

	refs := make(map[string][]models.ForeignKeyRef)
	for _, row := range rows {
		refs[row.ColumnName] = append(refs[row.ColumnName], models.ForeignKeyRef{
			Schema: row.ForeignSchema,
			Table:  row.ForeignTable,
			Column: row.ForeignColumn,
		})
	}
	return refs, nil
}

type primaryKeyRow struct {
	ColumnName string
	Position   int
}

// primaryKeys returns the primary key columns of the table as the database declares
// them.
func (s *schemaService) primaryKeys(ctx context.Context, schema, table string) (map[string]bool, error) {
	var rows []primaryKeyRow
	var err error
	switch s.dialect() {
	case dialectSQLite:
		err = s.DB.WithContext(ctx).Raw(
			"SELECT name AS column_name, pk AS position FROM pragma_table_info(?, ?) WHERE pk > 0",
			table, sqliteSchema(schema)).Scan(&rows).Error
	case dialectPostgres:
		err = s.DB.WithContext(ctx).Raw(`
			SELECT kcu.column_name AS column_name, kcu.ordinal_position AS position
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = COALESCE(NULLIF(?, ''), current_schema())
				AND tc.table_name = ?`, schema, table).Scan(&rows).Error
	default:
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Sprintf("failed to read primary key of %s", models.QualifiedName(schema, table)), err)
	}

	keys := make(map[string]bool, len(rows))
	for _, row := range rows {
		keys[row.ColumnName] = true
	}
	return keys, nil
}

// ReflectSchema builds a fresh catalog of the table's columns in table order.
func (s *schemaService) ReflectSchema(ctx context.Context, schema, table string) (*models.SchemaCatalog, error) {
	if err := s.requireTable(ctx, schema, table); err != nil {
		return nil, err
	}

	columnTypes, err := s.DB.WithContext(ctx).Migrator().ColumnTypes(s.tableRef(schema, table))
	if err != nil {
		return nil, classifyError(fmt.Sprintf("failed to reflect %s", models.QualifiedName(schema, table)), err)
	}

	refs, err := s.foreignKeys(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	keys, err := s.primaryKeys(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnDescriptor, 0, len(columnTypes))
	for _, columnType := range columnTypes {
		isPrimaryKey := keys[columnType.Name()]
		if keys == nil {
			isPrimaryKey, _ = columnType.PrimaryKey()
		}
		nullable, ok := columnType.Nullable()
		if !ok {
			nullable = !isPrimaryKey
		}
		databaseType := columnType.DatabaseTypeName()
		columns = append(columns, models.ColumnDescriptor{
			Name:         columnType.Name(),
			DatabaseType: databaseType,
			DeclaredType: models.ParseDeclaredType(databaseType),
			IsPrimaryKey: isPrimaryKey,
			Nullable:     nullable,
			ForeignKeys:  refs[columnType.Name()],
		})
	}

	return models.NewSchemaCatalog(schema, table, columns), nil
}

func (s *schemaService) GetColumn(ctx context.Context, schema, table, column string) (*models.ColumnDescriptor, error) {
	catalog, err := s.ReflectSchema(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	descriptor, err := catalog.Column(column)
	if err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// GetSelectedColumns resolves selectColumns against the table, with the same
// fallback to every column as filtered selections.
func (s *schemaService) GetSelectedColumns(ctx context.Context, schema, table string, selectColumns []string) ([]models.ColumnDescriptor, []string, error) {
	catalog, err := s.ReflectSchema(ctx, schema, table)
	if err != nil {
		return nil, nil, err
	}
	names := condition.ResolveSelection(catalog, selectColumns)
	descriptors := make([]models.ColumnDescriptor, 0, len(names))
	for _, name := range names {
		descriptor, _ := catalog.Lookup(name)
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, names, nil
}
