package connectors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	dbsql "github.com/databricks/databricks-sql-go"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	go_ora "github.com/sijms/go-ora/v2"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

// ErrDriverNotLinked is returned when the database/sql driver of a kind
// is not compiled into this binary. Link it with a blank import to use the kind.
var ErrDriverNotLinked = errors.New("database driver not linked")

var _ browser = &sqlSource{}

var dbParams = []string{"host", "database", "username", "password"}

func registerDatabases() {
	register(&Kind{
		ID: "mysql", Name: "MySQL", Description: "MySQL database",
		Category: CategoryDatabases,
		Required: dbParams,
		Optional: map[string]any{"port": 3306},
		label:    "database",
		build:    sqlBuilder("mysql", mysqlDSN, mysqlDialect),
	})
	register(&Kind{
		ID: "postgresql", Name: "PostgreSQL", Description: "PostgreSQL database",
		Aliases:  []string{"postgres"},
		Category: CategoryDatabases,
		Required: dbParams,
		Optional: map[string]any{"port": 5432, "sslmode": "prefer"},
		label:    "database",
		build:    sqlBuilder("pgx", postgresDSN("username", 5432), postgresDialect),
	})
	register(&Kind{
		ID: "mssql", Name: "SQL Server", Description: "Microsoft SQL Server",
		Aliases:  []string{"sqlserver"},
		Category: CategoryDatabases,
		Required: dbParams,
		Optional: map[string]any{"port": 1433},
		label:    "database",
		build:    sqlBuilder("sqlserver", mssqlDSN, mssqlDialect),
	})
	register(&Kind{
		ID: "oracle", Name: "Oracle", Description: "Oracle database",
		Category: CategoryDatabases,
		Required: []string{"host", "service_name", "username", "password"},
		Optional: map[string]any{"port": 1521},
		label:    "database",
		build:    sqlBuilder("oracle", oracleDSN, oracleDialect),
	})
	register(&Kind{
		ID: "db2", Name: "IBM DB2", Description: "IBM DB2 database",
		Category: CategoryDatabases,
		Required: dbParams,
		Optional: map[string]any{"port": 50000},
		label:    "database",
		build:    sqlBuilder("go_ibm_db", db2DSN, db2Dialect),
	})
	register(&Kind{
		ID: "sqlite", Name: "SQLite", Description: "SQLite database file",
		Category: CategoryDatabases,
		Required: []string{"path"},
		label:    "database",
		build:    sqlBuilder("sqlite", sqliteDSN, sqliteDialect),
	})
}

func registerSQLWarehouses() {
	register(&Kind{
		ID: "snowflake", Name: "Snowflake", Description: "Snowflake Data Warehouse",
		Category:    CategoryDataWarehouses,
		Required:    []string{"account", "user", "password", "warehouse", "database"},
		Optional:    map[string]any{"schema": "public", "role": nil},
		label:       "Snowflake",
		limitOnLoad: true,
		build:       sqlBuilder("snowflake", snowflakeDSN, snowflakeDialect),
	})
	register(&Kind{
		ID: "redshift", Name: "AWS Redshift", Description: "Amazon Redshift",
		Aliases:     []string{"aws_redshift"},
		Category:    CategoryDataWarehouses,
		Required:    []string{"host", "database", "user", "password"},
		Optional:    map[string]any{"port": 5439},
		label:       "Redshift",
		limitOnLoad: true,
		build:       sqlBuilder("pgx", postgresDSN("user", 5439), redshiftDialect),
	})
	register(&Kind{
		ID: "databricks", Name: "Databricks", Description: "Databricks SQL",
		Category:    CategoryDataWarehouses,
		Required:    []string{"server_hostname", "http_path", "access_token"},
		Optional:    map[string]any{},
		label:       "Databricks",
		limitOnLoad: true,
		build:       newDatabricksSource,
	})
	register(&Kind{
		ID: "teradata", Name: "Teradata", Description: "Teradata Database",
		Category:    CategoryDataWarehouses,
		Required:    []string{"host", "user", "password"},
		Optional:    map[string]any{"database": nil},
		label:       "Teradata",
		limitOnLoad: true,
		build:       sqlBuilder("teradata", teradataDSN, teradataDialect),
	})
}

// limiter rewrites query to return at most n rows.
type limiter func(query string, n int) string

var (
	reLimit  = regexp.MustCompile(`(?i)\bLIMIT\b`)
	reTop    = regexp.MustCompile(`(?i)\bTOP\b`)
	reFetch  = regexp.MustCompile(`(?i)\bFETCH\s+FIRST\b|\bROWNUM\b`)
	reSample = regexp.MustCompile(`(?i)\bSAMPLE\b`)
)

// limitClause appends LIMIT unless the query already limits itself with LIMIT or TOP.
func limitClause(query string, n int) string {
	if reLimit.MatchString(query) || reTop.MatchString(query) {
		return query
	}
	return query + " LIMIT " + strconv.Itoa(n)
}

func limitOnlyClause(query string, n int) string {
	if reLimit.MatchString(query) {
		return query
	}
	return query + " LIMIT " + strconv.Itoa(n)
}

func topClause(query string, n int) string {
	if reLimit.MatchString(query) || reTop.MatchString(query) {
		return query
	}
	return fmt.Sprintf("SELECT TOP %d * FROM (%s) AS preview", n, query)
}

func fetchFirstClause(query string, n int) string {
	if reFetch.MatchString(query) {
		return query
	}
	return fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", query, n)
}

func sampleClause(query string, n int) string {
	if reSample.MatchString(query) {
		return query
	}
	return query + " SAMPLE " + strconv.Itoa(n)
}

// dialect is what differs between SQL databases.
type dialect struct {
	limit limiter

	// version is a query answering the server version in one row and one column.
	version string

	// tables is a query answering (schema, table name) of user tables.
	tables string

	// quote quotes an identifier.
	quote func(string) string
}

func doubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func backQuote(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func bracket(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

const informationSchemaTables = `
	SELECT table_schema, table_name FROM information_schema.tables
	WHERE table_schema NOT IN ('information_schema', 'INFORMATION_SCHEMA', 'pg_catalog')
	ORDER BY table_schema, table_name`

var (
	mysqlDialect = dialect{
		limit:   limitClause,
		version: "SELECT VERSION()",
		tables: `
			SELECT table_schema, table_name FROM information_schema.tables
			WHERE table_schema = DATABASE()
			ORDER BY table_name`,
		quote: backQuote,
	}
	postgresDialect = dialect{
		limit:   limitClause,
		version: "SELECT version()",
		tables:  informationSchemaTables,
		quote:   doubleQuote,
	}
	mssqlDialect = dialect{
		limit:   topClause,
		version: "SELECT @@VERSION",
		tables: `
			SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE'
			ORDER BY TABLE_SCHEMA, TABLE_NAME`,
		quote: bracket,
	}
	oracleDialect = dialect{
		limit:   fetchFirstClause,
		version: "SELECT banner FROM v$version WHERE ROWNUM = 1",
		tables:  "SELECT USER, table_name FROM user_tables ORDER BY table_name",
		quote:   doubleQuote,
	}
	db2Dialect = dialect{
		limit:   fetchFirstClause,
		version: "SELECT service_level FROM sysibmadm.env_inst_info",
		tables: `
			SELECT TRIM(tabschema), tabname FROM syscat.tables
			WHERE type = 'T' AND tabschema NOT LIKE 'SYS%'
			ORDER BY tabschema, tabname`,
		quote: doubleQuote,
	}
	sqliteDialect = dialect{
		limit:   limitClause,
		version: "SELECT sqlite_version()",
		tables: `
			SELECT 'main', name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`,
		quote: doubleQuote,
	}
	snowflakeDialect = dialect{
		limit:   limitOnlyClause,
		version: "SELECT CURRENT_VERSION()",
		tables: `
			SELECT table_schema, table_name FROM information_schema.tables
			WHERE table_schema <> 'INFORMATION_SCHEMA'
			ORDER BY table_schema, table_name`,
		quote: doubleQuote,
	}
	redshiftDialect = dialect{
		limit:   limitOnlyClause,
		version: "SELECT version()",
		tables:  informationSchemaTables,
		quote:   doubleQuote,
	}
	databricksDialect = dialect{
		limit:   limitOnlyClause,
		version: "SELECT version()",
		tables:  informationSchemaTables,
		quote:   backQuote,
	}
	teradataDialect = dialect{
		limit:   sampleClause,
		version: "SELECT InfoData FROM DBC.DBCInfoV WHERE InfoKey = 'VERSION'",
		tables: `
			SELECT DatabaseName, TableName FROM DBC.TablesV
			WHERE TableKind = 'T' AND DatabaseName = DATABASE
			ORDER BY TableName`,
		quote: doubleQuote,
	}
)

var reTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*(\.[A-Za-z_][A-Za-z0-9_$#]*)?$`)

// qualified quotes "table" or "schema.table" for the dialect.
func (d dialect) qualified(name string) (string, error) {
	if !reTableName.MatchString(name) {
		return "", xe.WrapWithNote(name, ErrInvalidTableName)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, "."), nil
}

type dsnFunc func(params map[string]any) (string, error)

type sqlSource struct {
	driver  string
	dsn     string
	query   string
	dialect dialect
	params  map[string]any

	// opener is used instead of sql.Open when set.
	opener func() (*sql.DB, error)

	db *sql.DB
}

func sqlBuilder(driver string, dsn dsnFunc, d dialect) func(Config) (source, error) {
	return func(cfg Config) (source, error) {
		ds, err := dsn(cfg.Params)
		if err != nil {
			return nil, err
		}
		return &sqlSource{
			driver:  driver,
			dsn:     ds,
			query:   cfg.QueryOrPath,
			dialect: d,
			params:  cfg.Params,
		}, nil
	}
}

func (s *sqlSource) open(ctx context.Context) error {
	var db *sql.DB
	var err error
	if s.opener != nil {
		db, err = s.opener()
	} else {
		if !slices.Contains(sql.Drivers(), s.driver) {
			return xe.WrapWithNote(s.driver, ErrDriverNotLinked)
		}
		db, err = sql.Open(s.driver, s.dsn)
	}
	if err != nil {
		return xe.Errorf("Failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return xe.Errorf("Failed to connect to database: %w", err)
	}
	s.db = db
	return nil
}

func (s *sqlSource) close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqlSource) probe(ctx context.Context) (map[string]any, error) {
	var one any
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return nil, xe.Wrap(err)
	}
	details := map[string]any{
		"db_type":  s.driver,
		"database": paramString(s.params, "database", paramString(s.params, "path", "")),
	}
	// not every account can read the version.
	var version sql.NullString
	if err := s.db.QueryRowContext(ctx, s.dialect.version).Scan(&version); err == nil && version.Valid {
		details["version"] = version.String
	}
	return details, nil
}

func (s *sqlSource) read(ctx context.Context, limit int) (*frame.Frame, error) {
	return s.run(ctx, s.query, limit)
}

func (s *sqlSource) tables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.tables)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ts := []Table{}
	for rows.Next() {
		var schema sql.NullString
		var name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, xe.Wrap(err)
		}
		ts = append(ts, Table{Schema: schema.String, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ts, nil
}

func (s *sqlSource) readTable(ctx context.Context, table string, limit int) (*frame.Frame, error) {
	q, err := s.dialect.qualified(table)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "SELECT * FROM "+q, limit)
}

func (s *sqlSource) run(ctx context.Context, q string, limit int) (*frame.Frame, error) {
	if 0 < limit {
		q = s.dialect.limit(q, limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (*frame.Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	data := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, xe.Wrap(err)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return frame.FromRows(cols, data)
}

func hostPort(params map[string]any, defaultPort int) (string, error) {
	port, err := paramInt(params, "port", defaultPort)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(paramString(params, "host", "localhost"), strconv.Itoa(port)), nil
}

func mysqlDSN(params map[string]any) (string, error) {
	addr, err := hostPort(params, 3306)
	if err != nil {
		return "", err
	}
	c := mysql.NewConfig()
	c.User = paramString(params, "username", "")
	c.Passwd = paramString(params, "password", "")
	c.Net = "tcp"
	c.Addr = addr
	c.DBName = paramString(params, "database", "")
	c.ParseTime = true
	return c.FormatDSN(), nil
}

func postgresDSN(userKey string, defaultPort int) dsnFunc {
	return func(params map[string]any) (string, error) {
		addr, err := hostPort(params, defaultPort)
		if err != nil {
			return "", err
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(paramString(params, userKey, ""), paramString(params, "password", "")),
			Host:   addr,
			Path:   "/" + paramString(params, "database", ""),
		}
		if mode := paramString(params, "sslmode", ""); mode != "" {
			u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
		}
		return u.String(), nil
	}
}

func mssqlDSN(params map[string]any) (string, error) {
	addr, err := hostPort(params, 1433)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(paramString(params, "username", ""), paramString(params, "password", "")),
		Host:     addr,
		RawQuery: url.Values{"database": {paramString(params, "database", "")}}.Encode(),
	}
	return u.String(), nil
}

func oracleDSN(params map[string]any) (string, error) {
	port, err := paramInt(params, "port", 1521)
	if err != nil {
		return "", err
	}
	return go_ora.BuildUrl(
		paramString(params, "host", "localhost"),
		port,
		paramString(params, "service_name", paramString(params, "database", "")),
		paramString(params, "username", ""),
		paramString(params, "password", ""),
		nil,
	), nil
}

func db2DSN(params map[string]any) (string, error) {
	port, err := paramInt(params, "port", 50000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"HOSTNAME=%s;DATABASE=%s;PORT=%d;UID=%s;PWD=%s",
		paramString(params, "host", "localhost"),
		paramString(params, "database", ""),
		port,
		paramString(params, "username", ""),
		paramString(params, "password", ""),
	), nil
}

func sqliteDSN(params map[string]any) (string, error) {
	p := paramString(params, "path", "")
	if p == "" {
		return "", xe.New("parameter path is required")
	}
	return p, nil
}

func snowflakeDSN(params map[string]any) (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:   paramString(params, "account", ""),
		User:      paramString(params, "user", ""),
		Password:  paramString(params, "password", ""),
		Warehouse: paramString(params, "warehouse", ""),
		Database:  paramString(params, "database", ""),
		Schema:    paramString(params, "schema", "public"),
		Role:      paramString(params, "role", ""),
	})
}

func teradataDSN(params map[string]any) (string, error) {
	return fmt.Sprintf(
		`{"host":%q,"user":%q,"password":%q,"database":%q}`,
		paramString(params, "host", ""),
		paramString(params, "user", ""),
		paramString(params, "password", ""),
		paramString(params, "database", ""),
	), nil
}

func newDatabricksSource(cfg Config) (source, error) {
	host := paramString(cfg.Params, "server_hostname", "")
	httpPath := paramString(cfg.Params, "http_path", "")
	token := paramString(cfg.Params, "access_token", "")
	return &sqlSource{
		driver:  "databricks",
		query:   cfg.QueryOrPath,
		dialect: databricksDialect,
		params:  cfg.Params,
		opener: func() (*sql.DB, error) {
			c, err := dbsql.NewConnector(
				dbsql.WithServerHostname(host),
				dbsql.WithHTTPPath(httpPath),
				dbsql.WithAccessToken(token),
			)
			if err != nil {
				return nil, err
			}
			return sql.OpenDB(c), nil
		},
	}, nil
}
