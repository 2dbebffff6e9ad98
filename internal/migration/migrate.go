package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/campaign-chronicle/internal/config"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/internal/service"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured SQL backend. The memory driver has no database.
func Open(cfg config.DatabaseConfig, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverMySQL:
		mysqlCfg, perr := mysqldriver.ParseDSN(cfg.GetDSN())
		if perr != nil {
			return nil, fmt.Errorf("DSN 파싱 실패: %w", perr)
		}
		// audit timestamps are compared in UTC
		mysqlCfg.ParseTime = true
		mysqlCfg.Loc = time.UTC
		if mysqlCfg.Params == nil {
			mysqlCfg.Params = map[string]string{}
		}
		mysqlCfg.Params["time_zone"] = "'+00:00'"
		mysqlCfg.Params["charset"] = "utf8mb4"
		db, err = gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), gormCfg)
	case config.DriverSQLite:
		db, err = gorm.Open(sqlite.Open(cfg.GetDSN()), gormCfg)
	default:
		return nil, fmt.Errorf("driver %q has no SQL database", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite: single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}

// Run executes AutoMigrate for every entity table and the audit log.
// 테이블 없으면 생성, 있으면 컬럼/인덱스만 추가
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Seed creates the sample campaign through the gateway when no campaign exists,
// so seed data shows up in the audit log like any other write.
// Returns the new campaign id, or "" when the store was not empty.
func Seed(ctx context.Context, gateway *service.Gateway) (string, error) {
	existing, err := gateway.List(ctx, domain.EntityCampaign, "")
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", nil
	}

	mc := domain.Manual()
	campaign, err := gateway.Create(ctx, &domain.Campaign{
		Name:        "The Dragon's Demise",
		Description: "A quest to slay the great dragon, Ignis.",
	}, mc)
	if err != nil {
		return "", fmt.Errorf("seed campaign: %w", err)
	}
	campaignID := campaign.GetID()

	seeds := []domain.Entity{
		&domain.TimelineEvent{
			CampaignID:  campaignID,
			Title:       "The Village of Oakhaven Attacked",
			Description: "A fierce dragon attack left the village in ruins.",
			GameDate:    "1st of Eleint, 1491 DR",
			EventType:   "combat",
		},
		&domain.Character{
			CampaignID:        campaignID,
			Name:              "Sir Kael",
			Bio:               "A valiant knight.",
			IsPlayerCharacter: true,
		},
		&domain.Plot{
			CampaignID:  campaignID,
			Name:        "The Dragon's Lair",
			Description: "Find and defeat the dragon.",
			PlotType:    "main",
		},
	}
	for _, e := range seeds {
		if _, err := gateway.Create(ctx, e, mc); err != nil {
			return campaignID, fmt.Errorf("seed %s: %w", e.Kind(), err)
		}
	}

	return campaignID, nil
}
