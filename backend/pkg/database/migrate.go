package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsTable 记录菜单库 schema 版本的表，避免与同库其他服务的 schema_migrations 冲突
const MigrationsTable = "food_calendar_migrations"

// ErrMigrationDirty 上一次迁移中途失败，需人工修复后 force 版本
var ErrMigrationDirty = errors.New("数据库迁移处于 dirty 状态，需人工修复")

// RunMigrations 执行嵌入的 SQL 迁移（用户、菜品分类、菜品、日菜单、选餐、上传记录）
// dirty 状态下拒绝启动，避免在半迁移的表结构上导入菜单
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:  MigrationsTable,
		StatementTimeout: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if version, dirty, err := m.Version(); err == nil && dirty {
		logger.Error("数据库迁移处于 dirty 状态", zap.Uint("version", version), zap.String("table", MigrationsTable))
		return fmt.Errorf("%w: version=%d", ErrMigrationDirty, version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	logger.Info("数据库迁移完成", zap.Uint("version", version), zap.String("table", MigrationsTable))

	return nil
}
