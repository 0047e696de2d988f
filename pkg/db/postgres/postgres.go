package postgres

import (
	"evidence-portal/internal/config"
	"evidence-portal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func InitDB(cfg config.Database) error {
	var err error

	db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	log.WithField("host", cfg.Host).Info("connected to postgres")
	return db.AutoMigrate(models.Tables()...)
}

func GetDB() *gorm.DB {
	return db
}
