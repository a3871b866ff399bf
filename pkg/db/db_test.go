package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
)

func TestDuckMirror(t *testing.T) {
	m, err := OpenDuckDB(&config.DuckDBConfig{Table: "processed_record"}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer m.Close()

	fields := model.NewFields()
	require.NoError(t, json.Unmarshal([]byte(`{"label": "正常"}`), fields))

	ctx := context.Background()
	records := []model.ProcessedRecord{
		{ID: "1", RunID: "run-a", Source: "in.csv", Offset: 0, Status: "success", Content: "甲", Fields: *fields, CreatedAt: time.Now()},
		{ID: "2", RunID: "run-a", Source: "in.csv", Offset: 1, Status: "api_error", Content: "乙", Reason: "ApiError[429]: x", CreatedAt: time.Now()},
		{ID: "3", RunID: "run-a", Source: "in.csv", Offset: 2, Status: "success", Content: "丙", Fields: *fields, CreatedAt: time.Now()},
		{ID: "4", RunID: "run-b", Source: "in.csv", Offset: 0, Status: "success", Content: "甲", CreatedAt: time.Now()},
	}
	for _, rec := range records {
		require.NoError(t, m.Mirror(ctx, rec))
	}

	counts, err := m.CountByStatus(ctx, "run-a", "in.csv")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"success": 2, "api_error": 1}, counts)

	// 主键冲突
	assert.Error(t, m.Mirror(ctx, records[0]))
	assert.Equal(t, "duckdb", m.Name())
}

func TestOpenDuckDBRejectsBadTable(t *testing.T) {
	_, err := OpenDuckDB(&config.DuckDBConfig{Table: "x; DROP TABLE y"}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}

func TestOpenMySQLInvalidDSN(t *testing.T) {
	_, err := OpenMySQL(&config.MySQLConfig{DSN: "not a dsn"}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}

// backtickConn 把 MySQL 方言的反引号换成双引号，让 gorm 生成的语句在内存 DuckDB 上执行
type backtickConn struct {
	db *sql.DB
}

func (c backtickConn) rewrite(query string) string {
	return strings.ReplaceAll(query, "`", `"`)
}

func (c backtickConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.db.PrepareContext(ctx, c.rewrite(query))
}

func (c backtickConn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.rewrite(query), args...)
}

func (c backtickConn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.rewrite(query), args...)
}

func (c backtickConn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, c.rewrite(query), args...)
}

func (c backtickConn) GetDBConn() (*sql.DB, error) {
	return c.db, nil
}

func TestGormMirror(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	duck, err := OpenDuckDB(&config.DuckDBConfig{Table: "processed_record"}, log)
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: backtickConn{db: duck.db}, SkipInitializeWithVersion: true})
	m, err := OpenGorm(dialector, &config.MySQLConfig{MaxOpenConns: 1}, log)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "mysql", m.Name())

	fields := model.NewFields()
	require.NoError(t, json.Unmarshal([]byte(`{"label": "正常"}`), fields))

	ctx := context.Background()
	records := []model.ProcessedRecord{
		{ID: "g1", RunID: "run-a", Source: "in.csv", Offset: 0, Status: "success", Content: "甲", Fields: *fields},
		{ID: "g2", RunID: "run-a", Source: "in.csv", Offset: 1, Status: "parse_error", Content: "乙", Reason: "ParseError: x"},
		{ID: "g3", RunID: "run-a", Source: "other.csv", Offset: 0, Status: "success", Content: "丙"},
	}
	for _, rec := range records {
		require.NoError(t, m.Mirror(ctx, rec))
	}

	counts, err := m.CountByStatus(ctx, "run-a", "in.csv")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"success": 1, "parse_error": 1}, counts)

	// 两个镜像读到的是同一张表
	duckCounts, err := duck.CountByStatus(ctx, "run-a", "other.csv")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"success": 1}, duckCounts)

	assert.Error(t, m.Mirror(ctx, records[0]))
}
