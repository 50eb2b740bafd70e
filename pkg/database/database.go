package database

import (
	"fmt"
	"levelup_backend/internal/config"
	"levelup_backend/internal/model"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.Profile{},
		&model.Category{},
		&model.Process{},
		&model.Question{},
		&model.ExamResult{},
		&model.CompletionRecord{},
		&model.StreakState{},
		&model.UserBadge{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认分类（分类表为空时插入）
	var count int64
	db.Model(&model.Category{}).Count(&count)
	if count == 0 {
		defaultCategories := []model.Category{
			{Name: "Onboarding", Icon: "🚀"},
			{Name: "Security", Icon: "🛡️"},
			{Name: "Compliance", Icon: "📋"},
		}
		for _, cat := range defaultCategories {
			db.Create(&cat)
		}
	}

	return db, nil
}
