package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunMigrations 將資料庫 schema 升級到最新版本。
// 若 schema 處於 dirty 狀態（上次 migration 中斷），不自動修復，
// 直接回傳錯誤，讓操作者用 cmd/migrate 工具的 force 命令處理。
func RunMigrations(databaseURL string, sourceURL string) error {
	m, err := newMigrator(databaseURL, sourceURL)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("讀取 schema 版本失敗: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema 處於 dirty 狀態（版本 %d），請先以 migrate 工具修復", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("資料庫 schema 已是最新版本，無需 migration")
			return nil
		}
		return fmt.Errorf("執行 migration 失敗: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("讀取 migration 後的 schema 版本失敗: %w", err)
	}
	log.Printf("資料庫 schema 已升級至版本 %d", newVersion)
	return nil
}

// newMigrator 以 pgx 驅動建立 migrate 實例
func newMigrator(databaseURL string, sourceURL string) (*migrate.Migrate, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("連接資料庫失敗: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("建立 migration driver 失敗: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("建立 migrate 實例失敗: %w", err)
	}
	return m, nil
}
