// Package snowflake exports warehouse tables to a Snowflake account so the
// local demo data can back real dashboards.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

// Config holds Snowflake connection settings.
type Config struct {
	Account   string
	Username  string
	Password  string
	Role      string
	Warehouse string
	Database  string
	Schema    string
	Timeout   time.Duration
}

// Service exports tables over a database/sql connection.
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
}

// NewService creates an unconnected export service.
func NewService(config Config) *Service {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Service{config: config}
}

// ValidateConfig checks that every required connection field is set.
func (s *Service) ValidateConfig() error {
	required := []struct{ name, value string }{
		{"account", s.config.Account},
		{"username", s.config.Username},
		{"password", s.config.Password},
		{"warehouse", s.config.Warehouse},
		{"database", s.config.Database},
		{"schema", s.config.Schema},
	}
	for _, f := range required {
		if f.value == "" {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("snowflake %s is required", f.name)).
				WithSuggestions("Run 'slicehouse setup' to configure the connection")
		}
	}
	return nil
}

// Connect opens and pings the Snowflake connection, retrying transient
// failures with backoff.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := s.ValidateConfig(); err != nil {
		return err
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			s.config.Username, s.config.Password, s.config.Account,
			s.config.Database, s.config.Schema, s.config.Warehouse, s.config.Role)

		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.ConnectionError("failed to open snowflake connection", err).
				WithContext("account", s.config.Account)
		}
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			if strings.Contains(err.Error(), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "snowflake authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions("Verify the configured username and password")
			}
			return errors.ConnectionError("failed to connect to snowflake", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the connection.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.db.Close()
}

// ExportResult reports one exported table.
type ExportResult struct {
	Table    string
	Rows     int
	Duration time.Duration
}

// Export pushes the named tables in order, stopping at the first failure.
func (s *Service) Export(ctx context.Context, wh *store.Warehouse, tables []string) ([]ExportResult, error) {
	var results []ExportResult
	for _, name := range tables {
		tbl, err := wh.Table(name)
		if err != nil {
			return results, err
		}
		res, err := s.ExportTable(ctx, tbl)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ExportTable recreates the remote table contents: create if missing, clear,
// insert every row inside one transaction.
func (s *Service) ExportTable(ctx context.Context, tbl *store.Table) (ExportResult, error) {
	started := time.Now()
	res := ExportResult{Table: tbl.Name()}
	rows := tbl.Scan()
	columns := columnSet(rows)
	if len(columns) == 0 {
		return res, nil
	}

	if _, err := s.db.ExecContext(ctx, createStatement(tbl.Name(), columns, rows)); err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSQLExecution,
			fmt.Sprintf("failed to create table %s", tbl.Name())).WithContext("table", tbl.Name())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to begin export transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tbl.Name())); err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSQLExecution,
			fmt.Sprintf("failed to clear table %s", tbl.Name()))
	}

	insert := insertStatement(tbl.Name(), columns)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSQLExecution,
			fmt.Sprintf("failed to prepare insert for %s", tbl.Name()))
	}
	defer stmt.Close()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return res, errors.Wrap(err, errors.ErrCodeSQLExecution,
				fmt.Sprintf("failed to insert into %s", tbl.Name())).WithContext("table", tbl.Name())
		}
		res.Rows++
	}

	if err := tx.Commit(); err != nil {
		return res, errors.Wrap(err, errors.ErrCodeExportFailed,
			fmt.Sprintf("failed to commit export of %s", tbl.Name()))
	}
	res.Duration = time.Since(started)
	return res, nil
}

// columnSet returns the sorted union of column names across all rows.
func columnSet(rows []store.Row) []string {
	set := map[string]bool{}
	for _, row := range rows {
		for col := range row {
			set[col] = true
		}
	}
	columns := make([]string, 0, len(set))
	for col := range set {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// createStatement builds a CREATE TABLE IF NOT EXISTS with types inferred from
// the first non-nil value per column.
func createStatement(table string, columns []string, rows []store.Row) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", col, columnType(col, rows))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func columnType(col string, rows []store.Row) string {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int64:
			return "NUMBER"
		case float64:
			return "DOUBLE"
		case bool:
			return "BOOLEAN"
		case time.Time:
			return "TIMESTAMP_NTZ"
		default:
			return "VARCHAR"
		}
	}
	return "VARCHAR"
}

func insertStatement(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}
