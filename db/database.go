package db

import (
	"database/sql"
	"fmt"
	"time"

	"DuetFM/config"

	_ "github.com/go-sql-driver/mysql"
)

// DB 是全局数据库连接
var DB *sql.DB

// ConnectDB 建立MySQL连接
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(5)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// InitDB 初始化数据库表结构
func InitDB() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}

	// 上传歌曲ID从1000起步，与内置歌曲(1..5)的命名空间天然隔离
	schema := `
CREATE TABLE IF NOT EXISTS uploaded_tracks (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	title VARCHAR(255) NOT NULL,
	artist VARCHAR(255) DEFAULT '',
	url VARCHAR(512) NOT NULL,
	cover VARCHAR(512) DEFAULT '',
	duration DOUBLE DEFAULT 0,
	uploaded_by VARCHAR(100) DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 AUTO_INCREMENT=1000;`

	if _, err := DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create uploaded_tracks table: %w", err)
	}

	return nil
}
