package postgres

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	_defaultHost     = "localhost"
	_defaultPort     = "5432"
	_defaultUsername = "postgres"
	_defaultPassword = "postgres"
	_defaultDBName   = "postgres"
	_defaultSSLMode  = "disable"

	_defaultMaxOpenConns    = 4
	_defaultConnMaxLifetime = 30 * time.Minute
)

// Config is the candle store connection, read from POSTGRES_* variables.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns int
}

func NewConfigFromEnv() *Config {
	maxOpen, _ := strconv.Atoi(os.Getenv("POSTGRES_MAX_OPEN_CONNS"))
	return &Config{
		Host:         os.Getenv("POSTGRES_HOST"),
		Port:         os.Getenv("POSTGRES_PORT"),
		Username:     os.Getenv("POSTGRES_USERNAME"),
		Password:     os.Getenv("POSTGRES_PASSWORD"),
		DBName:       os.Getenv("POSTGRES_DB_NAME"),
		SSLMode:      os.Getenv("POSTGRES_SSL_MODE"),
		MaxOpenConns: maxOpen,
	}
}

func (c *Config) Setup() *Config {
	c.Host = cmp.Or(c.Host, _defaultHost)
	c.Port = cmp.Or(c.Port, _defaultPort)
	if _, err := strconv.Atoi(c.Port); err != nil {
		c.Port = _defaultPort
	}
	c.Username = cmp.Or(c.Username, _defaultUsername)
	c.Password = cmp.Or(c.Password, _defaultPassword)
	c.DBName = cmp.Or(c.DBName, _defaultDBName)
	c.SSLMode = cmp.Or(c.SSLMode, _defaultSSLMode)
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = _defaultMaxOpenConns
	}

	return c
}

// DSN is the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.DBName, c.Password, c.SSLMode,
	)
}

// String is the DSN with the password masked, safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=*** sslmode=%s",
		c.Host, c.Port, c.Username, c.DBName, c.SSLMode,
	)
}

func NewDB(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: can't connect to %s", err, cfg)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(_defaultConnMaxLifetime)
	return db, nil
}
