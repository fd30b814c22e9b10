package config

import "time"

type Provider struct {
	ID string `env:"ID,expand" envDefault:"default"`
}

type Tracker struct {
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"1m"`
}

type Catalog struct {
	// Path of a YAML template catalog. The embedded catalog is used when empty.
	Path string `env:"PATH,expand"`
}

type Query struct {
	CacheSize int           `env:"CACHE_SIZE" envDefault:"128"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}
