package serviceimpl_test

import (
	"context"
	"encoding/csv"
	go_dbaccess "github.com/AndresDFlores/go-dbaccess"
	"github.com/AndresDFlores/go-dbaccess/internal/logger"
	"github.com/AndresDFlores/go-dbaccess/internal/metrics"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"io"
	"os"
	"path/filepath"
	"testing"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	logger.InitWithWriter(logger.Config{Level: "ERROR"}, io.Discard)

	os.Exit(m.Run())
}

// newDatabaseService opens a private in-memory database seeded with a teams table and
// a players table referencing it.
func newDatabaseService(t *testing.T, options go_dbaccess.Options) (*gorm.DB, *go_dbaccess.DatabaseService) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range []string{
		`CREATE TABLE teams (id INTEGER PRIMARY KEY, name VARCHAR(64) NOT NULL)`,
		`CREATE TABLE players (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			age INTEGER,
			rating REAL,
			team_id INTEGER REFERENCES teams(id)
		)`,
		`INSERT INTO teams (id, name) VALUES (1, 'Reds'), (2, 'Blues')`,
		`INSERT INTO players (id, name, age, rating, team_id) VALUES
			(1, 'Alice', 30, 7.5, 1),
			(2, 'Bob', 18, 6.0, 1),
			(3, 'Topz', 65, 9.1, 2),
			(4, 'Carol', 42, 8.2, 2),
			(5, 'Dave', 35, NULL, NULL)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	svc, err := go_dbaccess.NewDatabaseService(db, options)
	require.NoError(t, err)
	return db, svc
}

func names(rows []map[string]interface{}) []string {
	result := make([]string, 0, len(rows))
	for _, row := range rows {
		result = append(result, row["name"].(string))
	}
	return result
}

func TestReflectSchema(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	catalog, err := svc.Schemas.ReflectSchema(ctx, "", "players")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age", "rating", "team_id"}, catalog.ColumnNames())

	id, err := catalog.Column("id")
	require.NoError(t, err)
	assert.True(t, id.IsPrimaryKey)
	assert.Equal(t, models.TypeInteger, id.DeclaredType)

	for _, name := range []string{"name", "age", "rating", "team_id"} {
		column, _ := catalog.Lookup(name)
		assert.False(t, column.IsPrimaryKey, name)
	}

	rating, _ := catalog.Lookup("rating")
	assert.Equal(t, models.TypeFloat, rating.DeclaredType)

	teamID, _ := catalog.Lookup("team_id")
	require.Len(t, teamID.ForeignKeys, 1)
	assert.Equal(t, "teams", teamID.ForeignKeys[0].Table)
	assert.Equal(t, "id", teamID.ForeignKeys[0].Column)

	teams, err := svc.Schemas.ReflectSchema(ctx, "main", "teams")
	require.NoError(t, err)
	name, _ := teams.Lookup("name")
	assert.Equal(t, models.TypeText, name.DeclaredType)
	assert.False(t, name.Nullable)

	_, err = svc.Schemas.ReflectSchema(ctx, "", "ghosts")
	assert.ErrorIs(t, err, models.ErrSchemaNotFound)
}

func TestReflectSchemaCompositePrimaryKey(t *testing.T) {
	db, svc := newDatabaseService(t, go_dbaccess.Options{})
	require.NoError(t, db.Exec(`CREATE TABLE rosters (
		season INTEGER NOT NULL,
		player_id INTEGER NOT NULL REFERENCES players(id),
		shirt TEXT,
		PRIMARY KEY (season, player_id)
	)`).Error)

	catalog, err := svc.Schemas.ReflectSchema(ctx, "", "rosters")
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, column := range catalog.Columns() {
		keys[column.Name] = column.IsPrimaryKey
	}
	assert.Equal(t, map[string]bool{"season": true, "player_id": true, "shirt": false}, keys)
}

func TestSchemaPresence(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	schemas, err := svc.Schemas.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Contains(t, schemas, "main")

	present, err := svc.Schemas.CheckSchemaPresence(ctx, "main")
	require.NoError(t, err)
	assert.True(t, present)

	present, err = svc.Schemas.CheckSchemaPresence(ctx, "nowhere")
	require.NoError(t, err)
	assert.False(t, present)

	_, err = svc.Schemas.CreateNewSchema(ctx, "reporting")
	assert.ErrorIs(t, err, models.ErrUnsupported)

	tables, err := svc.Schemas.ListTables(ctx, "")
	require.NoError(t, err)
	assert.Subset(t, tables, []string{"players", "teams", models.ExportRun{}.TableName()})

	present, err = svc.Schemas.CheckTablePresence(ctx, "", "players")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestGetSelectedColumns(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	descriptors, selected, err := svc.Schemas.GetSelectedColumns(ctx, "", "players", []string{"age", "name", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, selected)
	require.Len(t, descriptors, 2)
	assert.Equal(t, models.TypeInteger, descriptors[1].DeclaredType)

	_, selected, err = svc.Schemas.GetSelectedColumns(ctx, "", "players", []string{"ghost"})
	require.NoError(t, err)
	assert.Len(t, selected, 5)

	column, err := svc.Schemas.GetColumn(ctx, "", "players", "team_id")
	require.NoError(t, err)
	assert.Equal(t, "team_id", column.Name)

	_, err = svc.Schemas.GetColumn(ctx, "", "players", "ghost")
	assert.ErrorIs(t, err, models.ErrUnknownColumn)
}

func TestImportTableWhere(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})
	before := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("import_where", "success"))

	rows, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:          "players",
		SelectColumns:  []string{"name", "age"},
		CombineWithAnd: true,
		Conditions:     map[string][]string{"age": {">18", "<65"}},
		PaginationConditions: request.PaginationConditions{
			SortBy: utils.StringPtr("age"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, rows.Columns)
	assert.Equal(t, []string{"Alice", "Dave", "Carol"}, names(rows.Rows))
	assert.Equal(t, int64(3), rows.Total)
	assert.NotContains(t, rows.Rows[0], "rating")
	assert.Equal(t, int64(30), rows.Rows[0]["age"])

	after := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("import_where", "success"))
	assert.Equal(t, before+1, after)
}

func TestImportTableWherePagination(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	rows, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"age": {">=18"}},
		PaginationConditions: request.PaginationConditions{
			Limit:  utils.IntPtr(2),
			Offset: utils.IntPtr(1),
			SortBy: utils.StringPtr("age"),
			Order:  utils.StringPtr("desc"),
		},
	})
	require.NoError(t, err)
	// 65, 42, 35, 30, 18 -> skip one, take two
	assert.Equal(t, []string{"Carol", "Dave"}, names(rows.Rows))
	assert.Equal(t, int64(5), rows.Total)
}

func TestImportTableWithoutConditions(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	rows, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{Table: "teams"})
	require.NoError(t, err)
	assert.Len(t, rows.Rows, 2)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
}

func TestImportTableEmptyConditionLists(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	rows, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"age": {}},
	})
	require.NoError(t, err)
	assert.Len(t, rows.Rows, 5)
	assert.Equal(t, int64(5), rows.Total)

	_, err = svc.Queries.ImportTableLike(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"ghost": {}},
	})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)
}

func TestImportTableQuotedColumns(t *testing.T) {
	db, svc := newDatabaseService(t, go_dbaccess.Options{})
	require.NoError(t, db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, "order" INTEGER, "first name" TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO orders (id, "order", "first name") VALUES (1, 1, 'Ann'), (2, 2, 'Ben')`).Error)

	rows, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:         "orders",
		SelectColumns: []string{"order"},
		Conditions:    map[string][]string{"order": {">=2"}},
	})
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, map[string]interface{}{"order": int64(2)}, rows.Rows[0])

	rows, err = svc.Queries.ImportTableLike(ctx, request.ImportTableRequest{
		Table:         "orders",
		SelectColumns: []string{"first name", "id"},
		Conditions:    map[string][]string{"first name": {"A%"}},
		PaginationConditions: request.PaginationConditions{
			SortBy: utils.StringPtr("order"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "first name"}, rows.Columns)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "Ann", rows.Rows[0]["first name"])
	assert.Equal(t, int64(1), rows.Rows[0]["id"])
}

func TestImportTableErrors(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	_, err := svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"ghost": {"==1"}},
	})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)

	_, err = svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"age": {"30"}},
	})
	assert.ErrorIs(t, err, models.ErrMalformedCondition)

	_, err = svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"age": {">old"}},
	})
	assert.ErrorIs(t, err, models.ErrTypeCoercion)

	_, err = svc.Queries.ImportTableWhere(ctx, request.ImportTableRequest{
		Table:                "players",
		PaginationConditions: request.PaginationConditions{SortBy: utils.StringPtr("1; DROP TABLE players")},
	})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)

	_, err = svc.Queries.ImportTableLike(ctx, request.ImportTableRequest{
		Table:      "ghosts",
		Conditions: map[string][]string{"name": {"A%"}},
	})
	assert.ErrorIs(t, err, models.ErrSchemaNotFound)
}

func TestImportTableLike(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	rows, err := svc.Queries.ImportTableLike(ctx, request.ImportTableRequest{
		Table:      "players",
		Conditions: map[string][]string{"name": {"A%", "%z"}},
		PaginationConditions: request.PaginationConditions{
			SortBy: utils.StringPtr("id"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Topz"}, names(rows.Rows))

	// integer columns are matched on their text form
	rows, err = svc.Queries.ImportTableLike(ctx, request.ImportTableRequest{
		Table:          "players",
		CombineWithAnd: true,
		Conditions: map[string][]string{
			"age":     {"3%"},
			"team_id": {"1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(rows.Rows))
}

func TestExecuteStringQuery(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	rows, err := svc.Queries.ExecuteStringQuery(ctx, "SELECT count(*) AS total FROM players WHERE age > 30")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["total"])

	rows, err = svc.Queries.ExecuteStringQuery(ctx, "SELECT name, upper(name) AS shout, age * 2 AS doubled FROM players WHERE id = 1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Equal(t, "ALICE", rows[0]["shout"])
	assert.Equal(t, int64(60), rows[0]["doubled"])

	_, err = svc.Queries.ExecuteStringQuery(ctx, "SELECT * FROM ghosts")
	assert.ErrorIs(t, err, models.ErrExecution)
}

func TestCountAndDrop(t *testing.T) {
	db, svc := newDatabaseService(t, go_dbaccess.Options{})

	count, err := svc.Tables.CountTableRows(ctx, "", "players")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	deleted, err := svc.Tables.DropTableRow(ctx, request.DropTableRowRequest{Table: "players", Column: "age", Value: "18"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = svc.Tables.DropTableRow(ctx, request.DropTableRowRequest{Table: "players", Column: "name", Value: "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	_, err = svc.Tables.DropTableRow(ctx, request.DropTableRowRequest{Table: "players", Column: "age", Value: "young"})
	assert.ErrorIs(t, err, models.ErrTypeCoercion)

	_, err = svc.Tables.DropTableRow(ctx, request.DropTableRowRequest{Table: "players", Column: "ghost", Value: "1"})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)

	count, err = svc.Tables.CountTableRows(ctx, "", "players")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	deleted, err = svc.Tables.DropAllTableData(ctx, "", "players")
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	require.NoError(t, svc.Tables.DropTable(ctx, "", "players"))
	assert.False(t, db.Migrator().HasTable("players"))

	err = svc.Tables.DropTable(ctx, "", "players")
	assert.ErrorIs(t, err, models.ErrSchemaNotFound)

	_, err = svc.Tables.CountTableRows(ctx, "", "players")
	assert.ErrorIs(t, err, models.ErrSchemaNotFound)
}

func TestExportTable(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{ExportEnabled: true, BatchSize: 1})

	result, err := svc.Tables.ExportTable(ctx, request.ExportTableRequest{
		Table: "teams",
		Rows: []map[string]interface{}{
			{"id": 3, "name": "Greens"},
			{"id": 4, "name": "Golds"},
			{"id": 5, "name": "Greys"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Performed)
	assert.Equal(t, int64(3), result.Inserted)
	assert.NotEmpty(t, result.RunID)

	count, err := svc.Tables.CountTableRows(ctx, "", "teams")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	runs, total, err := svc.ExportRuns.GetExportRuns(ctx, request.GetExportRunsRequest{RunID: &result.RunID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, models.ExportStatusSucceeded, runs[0].Status)
	assert.Equal(t, models.ExportOperationInsert, runs[0].Operation)
	assert.Equal(t, int64(3), runs[0].RowCount)
	assert.Equal(t, "teams", runs[0].Table)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[0].FailureReason)
}

func TestExportTableDisabled(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{ExportEnabled: false})

	result, err := svc.Tables.ExportTable(ctx, request.ExportTableRequest{
		Table: "teams",
		Rows:  []map[string]interface{}{{"id": 3, "name": "Greens"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Performed)
	assert.Zero(t, result.Inserted)

	count, err := svc.Tables.CountTableRows(ctx, "", "teams")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	runs, _, err := svc.ExportRuns.GetExportRuns(ctx, request.GetExportRunsRequest{
		Status: utils.StringPtr(models.ExportStatusSkipped),
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].RunID)
}

func TestExportTableFailures(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{ExportEnabled: true})

	_, err := svc.Tables.ExportTable(ctx, request.ExportTableRequest{
		Table: "teams",
		Rows:  []map[string]interface{}{{"id": 9, "colour": "red"}},
	})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)

	// duplicate primary key
	_, err = svc.Tables.ExportTable(ctx, request.ExportTableRequest{
		Table: "teams",
		Rows:  []map[string]interface{}{{"id": 1, "name": "Reds again"}},
	})
	assert.ErrorIs(t, err, models.ErrExecution)

	runs, total, err := svc.ExportRuns.GetExportRuns(ctx, request.GetExportRunsRequest{
		Table:  utils.StringPtr("teams"),
		Status: utils.StringPtr(models.ExportStatusFailed),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.NotNil(t, runs[0].FailureReason)
	assert.NotEmpty(t, *runs[0].FailureReason)
}

func TestGetExportRunsPagination(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{ExportEnabled: true})

	for i := 0; i < 3; i++ {
		_, err := svc.Tables.ExportTable(ctx, request.ExportTableRequest{Table: "teams"})
		require.NoError(t, err)
	}

	runs, total, err := svc.ExportRuns.GetExportRuns(ctx, request.GetExportRunsRequest{
		Operation: utils.StringPtr(models.ExportOperationInsert),
		PaginationConditions: request.PaginationConditions{
			Limit: utils.IntPtr(2),
			Order: utils.StringPtr("DESC"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)
}

func TestDumpDatabase(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{DumpWorkers: 2})
	dir := t.TempDir()

	result, err := svc.Dumps.DumpDatabase(ctx, request.DumpDatabaseRequest{Dir: dir})
	require.NoError(t, err)
	require.Len(t, result.Tables, 2)
	assert.Equal(t, "players", result.Tables[0].Table)
	assert.Equal(t, int64(5), result.Tables[0].Rows)
	assert.Equal(t, "teams", result.Tables[1].Table)

	file, err := os.Open(filepath.Join(dir, "main.players.csv"))
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"id", "name", "age", "rating", "team_id"}, records[0])
	assert.Equal(t, []string{"1", "Alice", "30", "7.5", "1"}, records[1])
	assert.Equal(t, []string{"5", "Dave", "35", "", ""}, records[5])

	runs, total, err := svc.ExportRuns.GetExportRuns(ctx, request.GetExportRunsRequest{
		Operation: utils.StringPtr(models.ExportOperationDump),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, run := range runs {
		assert.Equal(t, models.ExportStatusSucceeded, run.Status)
		require.NotNil(t, run.Location)
		assert.FileExists(t, *run.Location)
	}
}

func TestDumpDatabaseUnknownSchema(t *testing.T) {
	_, svc := newDatabaseService(t, go_dbaccess.Options{})

	_, err := svc.Dumps.DumpDatabase(ctx, request.DumpDatabaseRequest{Dir: t.TempDir(), Schemas: []string{"nowhere"}})
	assert.ErrorIs(t, err, models.ErrSchemaNotFound)
}

func TestBuildFilteredSelection(t *testing.T) {
	db, svc := newDatabaseService(t, go_dbaccess.Options{})

	selection, err := svc.Conditions.BuildFilteredSelection(ctx, request.FilterRequest{
		Table:      "players",
		Conditions: map[string][]string{"rating": {">=8"}, "name": {"==Bob"}},
		Mode:       request.ComparisonMode,
	})
	require.NoError(t, err)

	var matched []string
	require.NoError(t, db.Table("players").Where(selection.Predicate).Order("id").Pluck("name", &matched).Error)
	assert.Equal(t, []string{"Bob", "Topz", "Carol"}, matched)
}
