package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"ec-order-service/internal/client"
	"ec-order-service/internal/config"
	"ec-order-service/internal/handler"
	"ec-order-service/internal/repository"
	"ec-order-service/internal/service"
	"ec-order-service/pkg/logger"
	"ec-order-service/pkg/metrics"
	"ec-order-service/pkg/migrate"
	"ec-order-service/pkg/rabbitmq"
)

func main() {
	cfg := config.LoadConfig()

	// 初始化結構化日誌
	appLogger, err := logger.NewZapLogger()
	if err != nil {
		log.Fatalf("初始化日誌失敗: %v", err)
	}
	defer appLogger.Sync()

	// 執行資料庫 migration
	log.Println("正在執行資料庫 migration...")
	if err := migrate.RunMigrations(cfg.GetDatabaseURL(), "file://migrations"); err != nil {
		log.Fatalf("資料庫 migration 失敗: %v", err)
	}

	// 初始化資料庫連接池
	log.Println("正在連接資料庫...")
	pool, err := newPgxPool(cfg)
	if err != nil {
		log.Fatalf("連接資料庫失敗: %v", err)
	}
	defer pool.Close()
	log.Printf("資料庫連接成功 (連接池: Min=%d, Max=%d, MaxLifetime=%v, MaxIdleTime=%v, HealthCheckPeriod=%v)",
		cfg.DBMinConns, cfg.DBMaxConns, cfg.DBMaxConnLifetime, cfg.DBMaxConnIdleTime, cfg.DBHealthCheckPeriod)

	orderRepo := repository.NewPgOrderRepositoryWithConfig(pool, cfg.DBQueryTimeout, cfg.DBWriteTimeout)

	// 初始化 RabbitMQ 連接與事件發布器
	log.Println("正在連接 RabbitMQ...")
	rabbitMQConn, err := rabbitmq.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatalf("連接 RabbitMQ 失敗: %v", err)
	}
	defer rabbitMQConn.Close()
	log.Println("RabbitMQ 連接成功")

	orderEventProducer, err := rabbitmq.NewOrderEventProducer(rabbitMQConn)
	if err != nil {
		log.Fatalf("建立 RabbitMQ Producer 失敗: %v", err)
	}
	defer orderEventProducer.Close()

	eventPublisher := service.NewRabbitMQEventPublisher(orderEventProducer)

	// 商品服務客戶端（庫存的唯一權威來源）
	productClient := client.NewHTTPProductServiceClient(cfg.ProductServiceURL, cfg.ProductServiceTimeout)
	log.Printf("商品服務位址: %s", cfg.ProductServiceURL)

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	orderService := service.NewOrderService(
		orderRepo,
		productClient,
		eventPublisher,
		appLogger,
		orderMetrics,
		cfg.EnrichWorkerCount,
	)

	// 組裝 HTTP 路由
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "ec-order-service",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	orderHandler := handler.NewOrderHandler(orderService, appLogger)
	orderHandler.RegisterRoutes(r)

	// 在 goroutine 中啟動 HTTP 服務器，主 goroutine 等待關閉信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	port := cfg.GetPort()
	go func() {
		log.Printf("HTTP 服務啟動在端口 %s", port)
		if err := r.Run(":" + port); err != nil {
			log.Fatalf("HTTP 服務啟動失敗: %v", err)
		}
	}()

	<-sigChan
	log.Println("收到關閉信號，正在關閉服務...")
	log.Println("服務已關閉")
}

// newPgxPool 依配置建立 pgx 連接池並確認資料庫可達
func newPgxPool(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MinConns = int32(cfg.DBMinConns)
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.DBHealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
