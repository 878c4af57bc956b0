package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Connection settings are required; engine
// tunables carry defaults so a bare environment still runs.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	RabbitURL string // AMQP broker URL; empty disables event publishing

	WebhookSecret    string        // payment gateway signing secret
	WebhookTolerance time.Duration // allowed skew on webhook signature timestamps

	HoldTTL         time.Duration // seat hold lifetime
	AvailabilityTTL time.Duration // availability cache freshness window
	SweepInterval   time.Duration // cadence of the stale hold sweep
	CutoffDays      int           // days before an event when sales close (0 = none)

	SMTPHost string // mail relay host; empty disables the mailer
	SMTPPort string // mail relay port
	SMTPUser string // mail relay username
	SMTPPass string // mail relay password
	MailFrom string // From address on confirmation mail
	OpsEmail string // recipient for reconciliation alert mail; empty disables
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.  Missing required variables are fatal; tunables fall
// back to their defaults.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		WebhookSecret:    must("PAYMENT_WEBHOOK_SECRET"),
		WebhookTolerance: envDur("PAYMENT_WEBHOOK_TOLERANCE", 5*time.Minute),
		HoldTTL:          envDur("HOLD_TTL", 20*time.Minute),
		AvailabilityTTL:  envDur("AVAILABILITY_CACHE_TTL", 5*time.Minute),
		SweepInterval:    envDur("HOLD_SWEEP_INTERVAL", 5*time.Minute),
		CutoffDays:       envInt("TICKET_CUTOFF_DAYS", 0),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         envStr("SMTP_PORT", "587"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPass:         os.Getenv("SMTP_PASS"),
		MailFrom:         envStr("MAIL_FROM", "reservations@localhost"),
		OpsEmail:         os.Getenv("OPS_EMAIL"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
