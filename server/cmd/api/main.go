package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressly/goose/v3"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/ctfradar/radar/internal/engine"
	"github.com/ctfradar/radar/internal/stream"
	"github.com/ctfradar/radar/server/config"
	"github.com/ctfradar/radar/server/internal/handler"
	"github.com/ctfradar/radar/server/internal/repository"
	"github.com/ctfradar/radar/server/internal/router"
	"github.com/ctfradar/radar/server/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := gorm.Open(clickhouse.Open(cfg.ClickHouseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	if *migrateFlag {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get sql.DB: %v", err)
		}
		if err := goose.SetDialect("clickhouse"); err != nil {
			log.Fatalf("Goose: failed to set dialect: %v", err)
		}
		log.Println("Running database migrations...")
		if err := goose.Up(sqlDB, "internal/migrations"); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The live engine is optional: without a Kafka broker the API
	// serves the ClickHouse archive only.
	var eng *engine.Engine
	if cfg.KafkaBroker != "" {
		eng = engine.New(engine.Config{
			RecentFillsDepth: cfg.RecentFillsDepth,
			PriceWindow:      cfg.PriceWindow,
		}, logger)
		go consumeFills(ctx, cfg, eng, logger)
	}

	fillRepo := repository.NewGormFillRepository(db)
	fillService := service.NewFillsService(fillRepo, eng)
	fillHandler := handler.NewFillHandler(fillService)

	routerConfig := &router.Config{
		FillHandler: fillHandler,
	}

	router := router.NewRouter(routerConfig)

	router.Run(fmt.Sprintf(":%s", cfg.ServerPort))
}

// consumeFills feeds the live engine from the fill topic until ctx is
// cancelled.
func consumeFills(ctx context.Context, cfg *config.Config, eng *engine.Engine, logger *logrus.Logger) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.KafkaBroker},
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Infof("Consuming fills from %s/%s", cfg.KafkaBroker, cfg.KafkaTopic)

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Errorf("Kafka read error: %v", err)
			continue
		}

		var msg stream.TradeMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			logger.Warnf("Dropping unparseable fill message: %v", err)
			continue
		}
		trade, err := msg.ToTrade()
		if err != nil {
			logger.Warnf("Dropping invalid fill message: %v", err)
			continue
		}
		// Ordering violations and duplicates are counted by the
		// engine; the consumer keeps going.
		_ = eng.ProcessTrade(ctx, trade)
	}
}
