package db

import (
	"context"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// GormMirror 将分类结果写入 MySQL / TiDB，配置了从库时统计查询走从库
type GormMirror struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func OpenMySQL(cfg *config.MySQLConfig, log *zap.SugaredLogger) (*GormMirror, error) {
	return OpenGorm(mysql.Open(cfg.DSN), cfg, log)
}

// OpenGorm 使用给定的 dialector 建立连接，replicas 仍按 MySQL DSN 注册
func OpenGorm(dialector gorm.Dialector, cfg *config.MySQLConfig, log *zap.SugaredLogger) (*GormMirror, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接 MySQL 失败")
	}

	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := gdb.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, errors.Wrap(err, "注册 MySQL 从库失败")
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "获取 MySQL 连接池失败")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(&model.ProcessedRecord{}); err != nil {
			return nil, errors.Wrap(err, "迁移 processed_record 表失败")
		}
	}
	log.Debug("MySQL 初始化完成...")
	return &GormMirror{db: gdb, log: log}, nil
}

func (m *GormMirror) Name() string { return "mysql" }

func (m *GormMirror) Mirror(ctx context.Context, rec model.ProcessedRecord) error {
	if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "插入数据失败")
	}
	return nil
}

// CountByStatus 统计某次运行中某个文件各状态的数量
func (m *GormMirror) CountByStatus(ctx context.Context, runID, source string) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := m.db.WithContext(ctx).
		Model(&model.ProcessedRecord{}).
		Select("status, COUNT(*) AS n").
		Where("run_id = ? AND source = ?", runID, source).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询数量失败")
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func (m *GormMirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
