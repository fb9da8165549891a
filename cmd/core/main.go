package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	http_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/mysql"
	nats_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/nats"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Ledger struct {
		// Type: "mysql" 或 "memory"
		Type    string `yaml:"type"`
		WALPath string `yaml:"wal_path"`
	} `yaml:"ledger"`
	MySQL mysql.Config `yaml:"mysql"`
	NATS  struct {
		// URL 留空則不發布審計事件
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
}

func main() {
	// 1. 載入設定
	cfg := loadConfig()

	// 2. 初始化 MySQL Client (Base Infrastructure)
	dbClient, err := mysql.NewClient(cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer dbClient.Close()
	log.Println("Connected to MySQL successfully")

	mysqlLedger := mysql_adapter.NewMySQLLedger(dbClient)

	// 3. 選擇 Ledger Store
	var usedLedger usecase.Ledger
	switch cfg.Ledger.Type {
	case "mysql":
		usedLedger = mysqlLedger
	case "memory":
		// 以 MySQL 的帳戶資料做初始狀態，WAL 負責重啟後的交易重放
		accounts, err := mysqlLedger.LoadAllAccounts(context.Background())
		if err != nil {
			log.Fatalf("Failed to load all accounts: %v", err)
		}
		log.Printf("Loaded %d accounts", len(accounts))

		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("Failed to init WAL: %v", err)
		}
		defer walFile.Close()

		memLedger, err := memory_adapter.NewMutexLedger(accounts, walFile)
		if err != nil {
			log.Fatalf("Failed to init MutexLedger: %v", err)
		}
		usedLedger = memLedger
	default:
		log.Fatalf("Invalid ledger type: %q", cfg.Ledger.Type)
	}

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(usedLedger)

	// 5. 審計事件發布 (Optional)
	if cfg.NATS.URL != "" {
		publisher, err := nats_adapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		coreUseCase.WithAuditPublisher(publisher)
		log.Printf("Publishing audit events to %s", cfg.NATS.Subject)
	}

	// 6. 初始化 HTTP Adapter (Driving Adapter) 並啟動
	server := http_adapter.NewServer(coreUseCase)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	// Graceful Shutdown
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server exited")
}

func loadConfig() Config {
	cfgData, err := os.ReadFile("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Ledger.Type == "" {
		cfg.Ledger.Type = "mysql"
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "ledger.transactions"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	return cfg
}
