package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/damoang/campaign-chronicle/internal/config"
	"github.com/damoang/campaign-chronicle/internal/migration"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/internal/service"
	"github.com/damoang/campaign-chronicle/pkg/lock"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seed := flag.Bool("seed", false, "create the sample campaign when no campaign exists")
	dryRun := flag.Bool("dry-run", false, "list tables that would be migrated without executing")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	loaded := config.LoadDotEnv(os.Getenv("APP_ENV"))
	if len(loaded) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		log.Fatalf("database.driver=memory has no schema to migrate")
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := migration.Open(cfg.Database, logLevel)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if *dryRun {
		for _, model := range repository.Models() {
			stmt := db.Model(model).Statement
			if err := stmt.Parse(model); err != nil {
				log.Fatalf("Failed to parse model: %v", err)
			}
			exists := db.Migrator().HasTable(model)
			log.Printf("[dry-run] %-16s exists=%v", stmt.Schema.Table, exists)
		}
		return
	}

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema migrated (%s, %v)", cfg.Database.Driver, time.Since(start).Round(time.Millisecond))

	if *seed {
		gateway := service.NewGateway(repository.NewGormRegistry(db, time.Now), lock.NewLocalLocker(), cfg.Lock.Wait, time.Now)
		campaignID, err := migration.Seed(context.Background(), gateway)
		if err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		if campaignID == "" {
			log.Println("Seed skipped: campaigns already exist")
		} else {
			log.Printf("Seeded campaign %s", campaignID)
		}
	}
}
