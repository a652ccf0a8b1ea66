package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ec-order-service/internal/config"
)

// migration 管理工具。服務啟動時會自動執行 up，
// 這個工具用於手動操作：回退、查版本、修復 dirty 狀態。
//
//	migrate up [steps]    升級（預設全部）
//	migrate down [steps]  回退（預設全部）
//	migrate version       顯示目前 schema 版本
//	migrate force <版本>  強制設定版本（修復 dirty 狀態用）
func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	m, err := newMigrator(config.LoadConfig().GetDatabaseURL())
	if err != nil {
		log.Fatalf("初始化 migrate 失敗: %v", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		runUp(m, stepsArg(args))
	case "down":
		runDown(m, stepsArg(args))
	case "version":
		printVersion(m)
	case "force":
		forceVersion(m, args)
	default:
		log.Fatalf("未知的命令: %s", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "用法: migrate <up [steps] | down [steps] | version | force <版本>>")
}

// stepsArg 解析 up/down 的可選步數參數，0 表示全部
func stepsArg(args []string) int {
	if len(args) < 2 {
		return 0
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil || steps <= 0 {
		log.Fatalf("步數必須為正整數: %s", args[1])
	}
	return steps
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("連接資料庫失敗: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("建立 migration driver 失敗: %w", err)
	}

	// 支援從專案根目錄或 cmd/migrate 目錄執行
	sourceURL := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		sourceURL = "file://../../migrations"
	}

	return migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
}

func runUp(m *migrate.Migrate, steps int) {
	var err error
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("資料庫已是最新版本，無需 migration")
	case err != nil:
		log.Fatalf("執行 migration up 失敗: %v", err)
	default:
		fmt.Println("migration up 執行成功")
	}
}

func runDown(m *migrate.Migrate, steps int) {
	var err error
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("資料庫已是最舊版本，無需回退")
	case err != nil:
		log.Fatalf("執行 migration down 失敗: %v", err)
	default:
		fmt.Println("migration down 執行成功")
	}
}

func printVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("尚未執行過任何 migration")
		return
	}
	if err != nil {
		log.Fatalf("獲取版本失敗: %v", err)
	}
	fmt.Printf("目前版本: %d, dirty: %v\n", version, dirty)
}

func forceVersion(m *migrate.Migrate, args []string) {
	if len(args) < 2 {
		log.Fatal("force 命令需要指定版本號")
	}
	version, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("版本號必須為整數: %s", args[1])
	}

	if err := m.Force(version); err != nil {
		log.Fatalf("執行 force 失敗: %v", err)
	}
	fmt.Printf("已強制設定版本為 %d\n", version)
}
