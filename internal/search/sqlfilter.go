package search

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	// Drivers for the named-filter database handle.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/core"
)

// SQLBackend executes .sql named filters through a database handle.
type SQLBackend struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLBackend wraps an open database handle.
func NewSQLBackend(db *sql.DB, logger *zap.Logger) *SQLBackend {
	return &SQLBackend{db: db, logger: logger}
}

// searchSQL loads the named query definition, binds its placeholders as
// statement parameters and interprets a zero/empty first result column as
// false.
func (e *Engine) searchSQL(ctx context.Context, robot, filterName string, resolve VarResolver) (bool, error) {
	if e.sql == nil {
		return false, &core.EvalError{Msg: "no database configured for filter " + filterName}
	}

	path, err := e.findFilterFile(robot, filterName)
	if err != nil {
		return false, &core.EvalError{Msg: "sql filter " + filterName, Err: err}
	}
	def, err := parseFilterDef(path)
	if err != nil {
		return false, err
	}
	statement, ok := def["statement"]
	if !ok {
		return false, &core.ParseError{File: path, Msg: "sql filter has no statement key"}
	}

	// The cache key carries the fully substituted statement so distinct
	// senders hit distinct entries.
	substituted, err := substitutePlaceholders(statement, resolve, "", nil)
	if err != nil {
		return false, err
	}
	key := robot + "\x00" + filterName + "\x00" + substituted

	return e.cachedBool(key, func() (bool, error) {
		var params []any
		query, err := substitutePlaceholders(statement, resolve, "?", &params)
		if err != nil {
			return false, err
		}

		var result any
		if err := e.sql.db.QueryRowContext(ctx, query, params...).Scan(&result); err != nil {
			if err == sql.ErrNoRows {
				return false, nil
			}
			return false, &core.EvalError{Msg: "sql filter query failed", Err: err}
		}

		truthy := sqlTruthy(result)
		e.logger.Debug("SQL filter evaluated",
			zap.String("filter", filterName),
			zap.Bool("result", truthy))
		return truthy, nil
	})
}

func sqlTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case int64:
		return val != 0
	case float64:
		return val != 0
	case bool:
		return val
	case []byte:
		return stringTruthy(string(val))
	case string:
		return stringTruthy(val)
	default:
		return true
	}
}

func stringTruthy(s string) bool {
	if s == "" {
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return true
}

// OpenDatabase opens the named-filter database handle for the configured
// driver.
func OpenDatabase(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}
