package db

import (
	"fmt"

	"paper-review/internal/config"
	"paper-review/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.Config) error {
	conn, err := Open(cfg.Database)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open 按驱动打开连接并自动迁移
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&model.Paper{},
		&model.PaperSection{},
		&model.Review{},
		&model.ReviewLog{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// OpenMemory 打开内存 sqlite（测试 / CLI 临时使用）
func OpenMemory() (*gorm.DB, error) {
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	if err != nil {
		return nil, err
	}
	// 内存库每个连接都是独立的库，必须固定为单连接
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
