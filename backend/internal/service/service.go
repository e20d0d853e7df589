package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
	"github.com/zefirkoooo/food-calendar/backend/pkg/cache"
	"github.com/zefirkoooo/food-calendar/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	MenuImport MenuImportService
	Menu       MenuService
	Selection  SelectionService
	Export     ExportService
}

// NewService 创建 Service 聚合
// blacklist 可为 nil（未配置 Redis 时）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	c cache.Cache,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		MenuImport: NewMenuImportService(repo, c, cfg.Menu, time.Now, logger),
		Menu:       NewMenuService(repo, c, cfg.Menu, time.Now, logger),
		Selection:  NewSelectionService(repo, c, logger),
		Export:     NewExportService(repo, cfg.Menu, time.Now, logger),
	}
}
