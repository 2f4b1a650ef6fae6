package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"printshop/internal/config"
	"printshop/internal/database"
	"printshop/internal/logger"
	"printshop/internal/repository"
	"printshop/internal/seed"
	"printshop/internal/service"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("seed", pflag.ExitOnError)
	flags.String("admin-email", "", "email of the admin account to create (ADMIN_EMAIL)")
	flags.String("admin-password", "", "password of the admin account (ADMIN_PASSWORD)")
	flags.String("admin-name", "Admin", "display name of the admin account (ADMIN_NAME)")
	skipCatalog := flags.Bool("skip-catalog", false, "only create the admin account")
	status := flags.Bool("status", false, "print the migration status and exit")
	flags.Parse(os.Args[1:])

	cfg := config.Load()
	viper.BindPFlag("ADMIN_EMAIL", flags.Lookup("admin-email"))
	viper.BindPFlag("ADMIN_PASSWORD", flags.Lookup("admin-password"))
	viper.BindPFlag("ADMIN_NAME", flags.Lookup("admin-name"))

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbService.Close()
	db := dbService.DB()

	if *status {
		if err := database.GetMigrationStatus(db); err != nil {
			log.Fatal("Failed to read migration status", zap.Error(err))
		}
		return
	}

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	admin := seed.Admin{
		Email:    viper.GetString("ADMIN_EMAIL"),
		Password: viper.GetString("ADMIN_PASSWORD"),
		Name:     viper.GetString("ADMIN_NAME"),
	}
	if admin.Email != "" && len(admin.Password) < 8 {
		log.Fatal("Admin password must be at least 8 characters")
	}

	userService := service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshExpiry)*24*time.Hour,
	)
	seeder := seed.New(
		repository.NewProductRepository(db),
		repository.NewCategoryRepository(db),
		userService,
		log,
	)

	groups := seed.Catalog
	if *skipCatalog {
		groups = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := seeder.Run(ctx, groups, admin)
	if err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}

	log.Info("Seeding completed",
		zap.Int("categories", res.Categories),
		zap.Int("products", res.Products),
		zap.Bool("admin_created", res.Admin),
	)
}
