// 手动触发台账对账脚本
//
// 对账已集成到主应用的后台定时任务中（默认每 60 分钟自动执行一次）。
// 此脚本仅用于手动触发，例如首次部署、批量导入完成记录或下游写入大面积失败后。
//
// 用法: go run scripts/reconcile.go

package main

import (
	"context"
	"levelup_backend/internal/config"
	"levelup_backend/internal/repository"
	"levelup_backend/internal/service"
	"levelup_backend/pkg/database"
	"levelup_backend/pkg/logger"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	reconcile := service.NewReconcileService(
		repository.NewCompletionRepository(db),
		repository.NewStreakRepository(db),
		repository.NewBadgeRepository(db),
		repository.NewProcessRepository(db),
	)

	log.Println("开始全量对账...")
	if err := reconcile.RebuildAll(context.Background()); err != nil {
		log.Fatalf("对账失败: %v", err)
	}
	log.Println("对账完成")
}
