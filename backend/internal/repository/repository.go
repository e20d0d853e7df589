package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User       UserRepository
	Category   CategoryRepository
	Dish       DishRepository
	DayMenu    DayMenuRepository
	Selection  SelectionRepository
	MenuUpload MenuUploadRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Category:   NewCategoryRepo(db),
		Dish:       NewDishRepo(db),
		DayMenu:    NewDayMenuRepo(db),
		Selection:  NewSelectionRepo(db),
		MenuUpload: NewMenuUploadRepo(db),
	}
}

// BeginTx 开启事务，返回的 *gorm.DB 需由调用方 Commit/Rollback
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn，fn 返回错误或 panic 时整体回滚
// 在已开启事务的 Repository 上调用时使用 SAVEPOINT，仅回滚内层操作
// db 为 nil（单元测试中的内存实现）时直接执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// MenuImportLockKey 菜单导入/滚动共用的 advisory lock 键
const MenuImportLockKey int64 = 0x464f4f44 // "FOOD"

// LockMenuImport 获取事务级 advisory lock，事务结束时自动释放
// 多实例部署时保证同一时刻只有一个导入或滚动在执行
func (r *Repository) LockMenuImport(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", MenuImportLockKey).Error
}
