package config

import (
	"time"

	"ArgbRelay/data/database/mgo/mongoutil"
	redis "ArgbRelay/service/storage/redis"
	"ArgbRelay/tools/errs"
)

const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"

	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// AppConfig is the whole relay configuration.
type AppConfig struct {
	NodeID int64        `json:"node_id" env:"ARGB_NODE_ID"`
	Log    LogConfig    `json:"log"`
	HTTP   HTTPConfig   `json:"http"`
	JWT    JWTConfig    `json:"jwt"`
	Relay  RelayConfig  `json:"relay"`
	Cache  CacheConfig  `json:"cache"`
	Redis  redis.Config `json:"redis"`
	Store  StoreConfig  `json:"store"`
}

type LogConfig struct {
	Level string `json:"level" env:"ARGB_LOG_LEVEL"`
}

type HTTPConfig struct {
	Addr              string        `json:"addr" env:"ARGB_HTTP_ADDR"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
}

type JWTConfig struct {
	SecurityKey string `json:"security_key" env:"ARGB_JWT_SECURITY_KEY"`
	Issuer      string `json:"issuer"`
}

// RelayConfig tunes the per-connection loop. PingPeriod 0 disables keepalive.
type RelayConfig struct {
	SendTimeout time.Duration `json:"send_timeout"`
	ReadLimit   int64         `json:"read_limit"`
	PingPeriod  time.Duration `json:"ping_period"`
	PongWait    time.Duration `json:"pong_wait"`
}

type CacheConfig struct {
	Driver     string        `json:"driver" env:"ARGB_CACHE_DRIVER"`
	SweepEvery time.Duration `json:"sweep_every"`
}

type StoreConfig struct {
	Driver   string           `json:"driver" env:"ARGB_STORE_DRIVER"`
	Mongo    mongoutil.Config `json:"mongo"`
	Postgres PostgresConfig   `json:"postgres"`
	Seed     SeedConfig       `json:"seed"`
}

type PostgresConfig struct {
	DSN      string `json:"dsn" env:"ARGB_POSTGRES_DSN"`
	MaxConns int32  `json:"max_conns"`
}

// SeedConfig holds the records served by the memory store.
type SeedConfig struct {
	Clients  []SeedClient  `json:"clients"`
	Channels []SeedChannel `json:"channels"`
}

type SeedClient struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	SecretHash string   `json:"secret_hash"`
}

type SeedChannel struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	OwnerID string   `json:"owner_id"`
	Members []string `json:"members"`
}

// Default returns a config with every default applied.
func Default() *AppConfig {
	c := &AppConfig{}
	c.norm()
	return c
}

func (c *AppConfig) norm() {
	if c.NodeID <= 0 {
		c.NodeID = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "argb-relay"
	}
	if c.Relay.SendTimeout <= 0 {
		c.Relay.SendTimeout = 5 * time.Second
	}
	if c.Relay.ReadLimit <= 0 {
		c.Relay.ReadLimit = 4096
	}
	if c.Relay.PongWait <= 0 {
		c.Relay.PongWait = 60 * time.Second
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverMemory
	}
	if c.Cache.SweepEvery <= 0 {
		c.Cache.SweepEvery = 30 * time.Second
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverMongo
	}
	m := &c.Store.Mongo
	if m.Database == "" {
		m.Database = "ArgbControl"
	}
	if m.ClientsCollection == "" {
		m.ClientsCollection = "Clients"
	}
	if m.SocketsCollection == "" {
		m.SocketsCollection = "Sockets"
	}
	if m.MaxPoolSize <= 0 {
		m.MaxPoolSize = 20
	}
	if m.MaxRetry <= 0 {
		m.MaxRetry = 3
	}
	if c.Store.Postgres.MaxConns <= 0 {
		c.Store.Postgres.MaxConns = 10
	}
}

// Validate checks the settings that have no usable default.
func (c *AppConfig) Validate() error {
	if c.JWT.SecurityKey == "" {
		return errs.New("jwt.security_key is required")
	}
	switch c.Cache.Driver {
	case CacheDriverMemory, CacheDriverRedis:
	default:
		return errs.New("unknown cache driver", "driver", c.Cache.Driver)
	}
	switch c.Store.Driver {
	case StoreDriverMongo:
		if c.Store.Mongo.Uri == "" && len(c.Store.Mongo.Address) == 0 {
			return errs.New("store.mongo.uri or store.mongo.address is required")
		}
	case StoreDriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return errs.New("store.postgres.dsn is required")
		}
	case StoreDriverMemory:
	default:
		return errs.New("unknown store driver", "driver", c.Store.Driver)
	}
	if c.Relay.PingPeriod > 0 && c.Relay.PingPeriod >= c.Relay.PongWait {
		return errs.New("relay.ping_period must be shorter than relay.pong_wait")
	}
	return nil
}
