// Основной пакет сервиса форм. Подключается к базе данных, применяет миграции, создает администратора по умолчанию и запускает HTTP сервер.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms"
	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/gormlogger"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var version string = "DEV"

const sqliteScheme = "sqlite://"

// main запускает сервис.
//
// Пример запуска: go run ./cmd/aiforms --noMigration --trace
func main() {
	noTranslateFlag := flag.Bool("noTranslate", false, "Turn off BD errors translate")
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()

	cfg := config.ReadConfig()

	if *trace {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	slog.Info("AIForms start.")

	if cfg.DefaultUserEmail == "" {
		slog.Error("Default email not preset")
		os.Exit(1)
	}
	if cfg.SecretKey == "" {
		slog.Error("SECRET_KEY is required")
		os.Exit(1)
	}

	db, err := gorm.Open(dialector(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: !*noTranslateFlag,
		Logger:         gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries),
	})
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Fail set settings to conn pool", "err", err)
		os.Exit(1)
	}
	if strings.HasPrefix(cfg.DatabaseDSN, sqliteScheme) {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetMaxIdleConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(time.Minute * 15)
	}

	if !*noMigration {
		slog.Info("Migrate DB schema")
		if err := db.AutoMigrate(dao.AllModels()...); err != nil {
			slog.Error("DB migration failed", "err", err)
			os.Exit(1)
		}
	}

	var usersExist bool
	if err := db.Model(&dao.User{}).
		Select("EXISTS(?)",
			db.Model(&dao.User{}).Select("1"),
		).
		Find(&usersExist).Error; err != nil {
		slog.Error("Fail count users in DB", "err", err)
		os.Exit(1)
	}

	if !usersExist {
		slog.Info("Creating default user", "email", cfg.DefaultUserEmail)
		pass, err := dao.AddDefaultUser(db, cfg.DefaultUserEmail)
		if err != nil {
			slog.Error("Create default user", "err", err)
			os.Exit(1)
		}
		fmt.Printf("Default admin %s password: %s\n", cfg.DefaultUserEmail, pass)
	}

	aiforms.Server(db, cfg, version)
}

// dialector выбирает драйвер по DSN: sqlite://<path> для встроенной базы, иначе PostgreSQL
func dialector(dsn string) gorm.Dialector {
	if path, ok := strings.CutPrefix(dsn, sqliteScheme); ok {
		return sqlite.Open(path + "?_pragma=foreign_keys(1)")
	}
	return postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: false,
	})
}

// PrintBanner выводит заголовок приложения с версией
func PrintBanner() {
	banner := `
          _____ ______
    /\   |_   _|  ____|
   /  \    | | | |__ ___  _ __ _ __ ___  ___
  / /\ \   | | |  __/ _ \| '__| '_ ' _ \/ __|
 / ____ \ _| |_| | | (_) | |  | | | | | \__ \
/_/    \_\_____|_|  \___/|_|  |_| |_| |_|___/ %s
Templates, forms and answers in one place
%s
----------------------------------------------------
`
	colorReset := "\033[0m"

	colorYellow := "\033[33m"
	colorBlue := "\033[34m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion, colorBlue+"https://aisa.ru"+colorReset)
}
