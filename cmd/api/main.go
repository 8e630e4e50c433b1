package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"motorlane/internal/config"
	"motorlane/internal/httpserver"
	"motorlane/internal/logger"
	"motorlane/internal/models"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Account{}, &models.User{}, &models.Role{},
		&models.EmailVerification{}, &models.RevokedToken{}, &models.AuditLog{},
		&models.Vehicle{}, &models.VehicleImage{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaults(db, cfg, lg)
	router, err := httpserver.NewRouter(db, cfg, lg)
	if err != nil {
		lg.Fatalw("router init failed", "error", err)
	}
	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

// seedDefaults makes sure the default account and its roles exist so
// registration has somewhere to land on a fresh database.
func seedDefaults(db *gorm.DB, cfg config.Config, lg *zap.SugaredLogger) {
	var acc models.Account
	err := db.Where(models.Account{Slug: cfg.DefaultAccountSlug}).
		Attrs(models.Account{Name: "Default"}).
		FirstOrCreate(&acc).Error
	if err != nil {
		lg.Fatalw("seed account failed", "error", err)
	}
	for _, name := range []string{"Administrator", "User"} {
		var role models.Role
		err := db.Where("name = ? AND account_id = ?", name, acc.ID).
			Attrs(models.Role{Name: name, AccountID: &acc.ID}).
			FirstOrCreate(&role).Error
		if err != nil {
			lg.Fatalw("seed role failed", "role", name, "error", err)
		}
	}
	lg.Infow("seeded default account", "slug", cfg.DefaultAccountSlug)
}
