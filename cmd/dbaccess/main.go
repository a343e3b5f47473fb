package main

import (
	"context"
	"encoding/json"
	"fmt"
	go_dbaccess "github.com/AndresDFlores/go-dbaccess"
	"github.com/AndresDFlores/go-dbaccess/internal/config"
	"github.com/AndresDFlores/go-dbaccess/internal/db"
	"github.com/AndresDFlores/go-dbaccess/internal/logger"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
)

var (
	configPath string
	schemaName string
)

var rootCmd = &cobra.Command{
	Use:           "dbaccess",
	Short:         "Inspect, filter and export relational tables",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads the configuration and wires the services.
func connect() (*go_dbaccess.DatabaseService, *config.Config, error) {
	cfg, err := config.Load(configPath, config.EnvPrefix)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Log)

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	svc, err := go_dbaccess.NewDatabaseService(conn, go_dbaccess.Options{
		ExportEnabled: cfg.Export.Enabled,
		BatchSize:     cfg.Export.BatchSize,
		DumpWorkers:   cfg.Export.Workers,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type importFlags struct {
	selectColumns []string
	conditions    []string
	or            bool
	limit         int
	offset        int
	sortBy        string
	order         string
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.selectColumns, "select", nil, "Columns to return (default all)")
	cmd.Flags().StringArrayVar(&f.conditions, "cond", nil, "Condition as column:value, repeatable")
	cmd.Flags().BoolVar(&f.or, "or", false, "Combine conditions with OR instead of AND")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum rows to return")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Rows to skip")
	cmd.Flags().StringVar(&f.sortBy, "sort", "", "Column to sort by")
	cmd.Flags().StringVar(&f.order, "order", "ASC", "ASC or DESC")
}

func (f *importFlags) request(table string) (request.ImportTableRequest, error) {
	conditions, err := parseConditions(f.conditions)
	if err != nil {
		return request.ImportTableRequest{}, err
	}
	req := request.ImportTableRequest{
		Schema:         schemaName,
		Table:          table,
		SelectColumns:  f.selectColumns,
		CombineWithAnd: !f.or,
		Conditions:     conditions,
	}
	if f.limit > 0 {
		req.PaginationConditions.Limit = &f.limit
	}
	if f.offset > 0 {
		req.PaginationConditions.Offset = &f.offset
	}
	if f.sortBy != "" {
		req.PaginationConditions.SortBy = &f.sortBy
		req.PaginationConditions.Order = &f.order
	}
	return req, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&schemaName, "schema", "", "Schema name (default: connection default)")

	schemasCmd := &cobra.Command{
		Use:   "schemas",
		Short: "List schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			schemas, err := svc.Schemas.ListSchemas(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(schemas)
		},
	}

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables of a schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			tables, err := svc.Schemas.ListTables(cmd.Context(), schemaName)
			if err != nil {
				return err
			}
			return printJSON(tables)
		},
	}

	columnsCmd := &cobra.Command{
		Use:   "columns TABLE",
		Short: "Show the reflected column catalog of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			catalog, err := svc.Schemas.ReflectSchema(cmd.Context(), schemaName, args[0])
			if err != nil {
				return err
			}
			return printJSON(catalog.Columns())
		},
	}

	var whereFlags importFlags
	whereCmd := &cobra.Command{
		Use:   "where TABLE",
		Short: "Select rows matching comparison conditions such as age:>=18",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := whereFlags.request(args[0])
			if err != nil {
				return err
			}
			svc, _, err := connect()
			if err != nil {
				return err
			}
			rows, err := svc.Queries.ImportTableWhere(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	whereFlags.register(whereCmd)

	var likeFlags importFlags
	likeCmd := &cobra.Command{
		Use:   "like TABLE",
		Short: "Select rows matching LIKE patterns such as name:a%",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := likeFlags.request(args[0])
			if err != nil {
				return err
			}
			svc, _, err := connect()
			if err != nil {
				return err
			}
			rows, err := svc.Queries.ImportTableLike(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	likeFlags.register(likeCmd)

	countCmd := &cobra.Command{
		Use:   "count TABLE",
		Short: "Count the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			count, err := svc.Tables.CountTableRows(cmd.Context(), schemaName, args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"count": count})
		},
	}

	sqlCmd := &cobra.Command{
		Use:   "sql QUERY",
		Short: "Run a raw SQL query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			rows, err := svc.Queries.ExecuteStringQuery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}

	var dumpDir string
	var dumpWorkers int
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every table to a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := connect()
			if err != nil {
				return err
			}
			dir := dumpDir
			if dir == "" {
				dir = cfg.Export.OutputDir
			}
			req := request.DumpDatabaseRequest{Dir: dir, Workers: dumpWorkers}
			if schemaName != "" {
				req.Schemas = []string{schemaName}
			}
			result, err := svc.Dumps.DumpDatabase(cmd.Context(), req)
			if result != nil {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	dumpCmd.Flags().StringVar(&dumpDir, "dir", "", "Output directory (default export.outputdir)")
	dumpCmd.Flags().IntVar(&dumpWorkers, "workers", 0, "Tables dumped in parallel (default export.workers)")

	var runStatus, runTable string
	var runLimit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := connect()
			if err != nil {
				return err
			}
			req := request.GetExportRunsRequest{}
			if runStatus != "" {
				req.Status = &runStatus
			}
			if runTable != "" {
				req.Table = &runTable
			}
			if schemaName != "" {
				req.Schema = &schemaName
			}
			if runLimit > 0 {
				req.PaginationConditions.Limit = &runLimit
			}
			runs, total, err := svc.ExportRuns.GetExportRuns(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"runs": runs, "total": total})
		},
	}
	runsCmd.Flags().StringVar(&runStatus, "status", "", "Filter by status (succeeded, failed, skipped)")
	runsCmd.Flags().StringVar(&runTable, "table", "", "Filter by table")
	runsCmd.Flags().IntVar(&runLimit, "limit", 50, "Maximum runs to return")

	rootCmd.AddCommand(schemasCmd, tablesCmd, columnsCmd, whereCmd, likeCmd, countCmd, sqlCmd, dumpCmd, runsCmd)
}
