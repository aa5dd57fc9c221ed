package app

import (
	"context"

	"futroll/internal/config"
	"futroll/internal/gateway/database"
	"futroll/internal/logger"
)

// AppBuilder 手工装配 App 依赖，wire 注入只是它的一层薄壳。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 打开数据库并构造 App。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	db, err := database.NewStore(b.cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 数据库就绪: %s", b.cfg.Data.DBPath)
	return &App{cfg: b.cfg, db: db}, nil
}
