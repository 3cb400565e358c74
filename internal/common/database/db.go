package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	DBName   string
	// SSLMode が空の場合はホスト名から決定します
	SSLMode string
}

// DSN はlib/pq形式の接続文字列を返します
func (cfg Config) DSN() string {
	sslModeValue := cfg.SSLMode
	if sslModeValue == "" {
		// localhostのDBの場合はSSLを無効化
		if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
			sslModeValue = "disable"
		} else {
			sslModeValue = "require" // 本番環境ではSSLを有効にする
		}
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.UserName,
		cfg.Password,
		cfg.DBName,
		sslModeValue,
	)
}

// Open はX-Ray対応のコネクションプールを作成し、疎通確認まで行います
func Open(cfg Config) (*sqlx.DB, error) {
	// X-Ray対応のSQLコンテキストを作成
	db, err := xray.SQLContext("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database with X-Ray: %w", err)
	}

	configurePool(db)

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlx.NewDb(db, "postgres"), nil
}

// コネクションプールの設定
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
}
