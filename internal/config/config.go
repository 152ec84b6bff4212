package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"subvault/internal/ledger"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"memory"`

	JWTSecret        string        `env:"JWT_SECRET,required"`
	JWTTTL           time.Duration `env:"JWT_TTL" envDefault:"24h"`
	EncryptionSecret string        `env:"ENCRYPTION_SECRET,required"`

	ProgramID     ledger.Address `env:"PROGRAM_ID"`
	TokenMint     ledger.Address `env:"TOKEN_MINT"`
	ValidatorVote ledger.Address `env:"VALIDATOR_VOTE"`
	FeeAmount     uint64         `env:"FEE_AMOUNT" envDefault:"10000"`
	Devnet        bool           `env:"DEVNET" envDefault:"false"`

	MetricsUser         string `env:"METRICS_USER" envDefault:"metrics"`
	MetricsPasswordHash string `env:"METRICS_PASSWORD_HASH"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	MailFrom             string `env:"MAIL_FROM"`
	MailReplyTo          string `env:"MAIL_REPLY_TO"`
	ExplorerURL          string `env:"EXPLORER_URL"`
	LowBalanceSchedule   string `env:"LOW_BALANCE_SCHEDULE" envDefault:"0 9 * * *"`

	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LedgerBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres ledger")
		}
		if c.ProgramID.IsZero() || c.TokenMint.IsZero() {
			return errors.New("PROGRAM_ID and TOKEN_MINT are required for the postgres ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.FeeAmount == 0 {
		return errors.New("FEE_AMOUNT must be positive")
	}
	// An in-memory ledger without explicit ids gets stable ones so restarts
	// and tests derive the same addresses.
	if c.ProgramID.IsZero() {
		c.ProgramID = devAddress("program")
	}
	if c.TokenMint.IsZero() {
		c.TokenMint = devAddress("mint")
	}
	return nil
}

// MailerEnabled reports whether Postmark credentials are configured.
func (c *Config) MailerEnabled() bool {
	return c.PostmarkServerToken != "" && c.MailFrom != ""
}

func devAddress(name string) ledger.Address {
	return ledger.Address(sha256.Sum256([]byte("subvault:dev:" + name)))
}
