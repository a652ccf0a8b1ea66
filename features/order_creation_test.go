package features

import (
	"os"
	"testing"

	"github.com/cucumber/godog"

	"ec-order-service/features/step_definitions"
)

// TestFeatures 執行 features 目錄下的所有 BDD 場景。
// 輸出格式可用 GODOG_FORMAT 環境變數切換（pretty、progress、junit）。
func TestFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: step_definitions.InitializeScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    []string{"."},
			Strict:   true, // 未定義或 pending 的步驟視為失敗
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("BDD 測試失敗")
	}
}
