package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DuckMirror 将分类结果写入 DuckDB 表，便于事后用 SQL 分析
type DuckMirror struct {
	db    *sql.DB
	table string
	log   *zap.SugaredLogger
}

// OpenDuckDB 打开 duckdb 连接，DBPath 为空时使用内存库
func OpenDuckDB(cfg *config.DuckDBConfig, log *zap.SugaredLogger) (*DuckMirror, error) {
	if !identPattern.MatchString(cfg.Table) {
		return nil, errors.Errorf("非法的 DuckDB 表名: %s", cfg.Table)
	}
	conn, err := sql.Open("duckdb", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "连接 duckdb 失败")
	}

	// 测试连接
	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "duckdb 连接测试失败")
	}

	m := &DuckMirror{db: conn, table: cfg.Table, log: log}
	if err := m.createTable(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	log.Debug("duckdb 初始化完成...")
	return m, nil
}

func (m *DuckMirror) Name() string { return "duckdb" }

// createTable 表已存在时保留历史数据
func (m *DuckMirror) createTable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			source TEXT,
			row_offset INTEGER,
			status TEXT,
			content TEXT,
			fields TEXT,
			reason TEXT,
			created_at TIMESTAMP
		)
	`, m.table)

	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return errors.Wrap(err, "创建 DuckDB 表失败")
	}
	m.log.Debugf("DuckDB 表 %s 已就绪", m.table)
	return nil
}

func (m *DuckMirror) Mirror(ctx context.Context, rec model.ProcessedRecord) error {
	fields, err := rec.Fields.Value()
	if err != nil {
		return errors.Wrap(err, "序列化字段失败")
	}
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, source, row_offset, status, content, fields, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.table)

	_, err = m.db.ExecContext(ctx, insertSQL,
		rec.ID,
		rec.RunID,
		rec.Source,
		rec.Offset,
		rec.Status,
		rec.Content,
		fields,
		rec.Reason,
		rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "插入数据失败")
	}
	return nil
}

// CountByStatus 统计某次运行中某个文件各状态的数量
func (m *DuckMirror) CountByStatus(ctx context.Context, runID, source string) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM %s WHERE run_id = ? AND source = ? GROUP BY status`, m.table)
	rows, err := m.db.QueryContext(ctx, query, runID, source)
	if err != nil {
		return nil, errors.Wrap(err, "查询数量失败")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "扫描统计结果失败")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (m *DuckMirror) Close() error {
	return m.db.Close()
}
