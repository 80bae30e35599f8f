package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Addr         string
	DBDSN        string // vacío = store en memoria
	ReminderCron string
}

// Load lee .env si existe y luego el entorno del proceso.
func Load(log *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system env")
	}

	addr := ":8080"
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		addr = ":" + v
	}

	cron := strings.TrimSpace(os.Getenv("REMINDER_CRON"))
	if cron == "" {
		cron = "* * * * *" // cada minuto, coincide con la granularidad HH:MM
	}

	return &Config{
		Addr:         addr,
		DBDSN:        strings.TrimSpace(os.Getenv("DB_DSN")),
		ReminderCron: cron,
	}
}
