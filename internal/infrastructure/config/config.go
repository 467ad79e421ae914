package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT, default=3000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,   default=24h"`
	BcryptCost int           `env:"BCRYPT_COST, default=10"`

	RPC   RPCConfig
	Mongo MongoConfig
}

type RPCConfig struct {
	Host    string        `env:"RPC_HOST,    default=localhost"`
	Port    string        `env:"RPC_PORT,    default=3001"`
	Timeout time.Duration `env:"RPC_TIMEOUT, default=5s"`
}

// Addr returns the host:port the gateway dials and authd binds.
func (c RPCConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=authstack"`
}

// Load reads configuration from environment variables once at startup using
// go-envconfig. There is no hot-reload.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
