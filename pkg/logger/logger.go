package logger

import (
	"go.uber.org/zap"
)

// ZapLogger 以 zap 實作的結構化日誌器。
// 欄位以 key-value 交錯的方式傳入，與 zap 的 Sugared API 一致。
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger 創建生產環境配置的日誌器
func NewZapLogger() (*ZapLogger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{
		// 跳過一層包裝，讓日誌顯示實際呼叫位置
		sugar: base.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}, nil
}

// Info 記錄資訊日誌
func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.sugar.Infow(msg, fields...)
}

// Error 記錄錯誤日誌，錯誤會附加在 error 欄位
func (l *ZapLogger) Error(msg string, err error, fields ...interface{}) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	l.sugar.Errorw(msg, fields...)
}

// Warn 記錄警告日誌
func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, fields...)
}

// Sync 將緩衝的日誌寫出（應在程式結束前呼叫）
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
