package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const Prefix = "TASKBOARD_"

type Config struct {
	Logger   Logger   `envPrefix:"LOGGER_"`
	HTTP     HTTP     `envPrefix:"HTTP_"`
	Storage  Storage  `envPrefix:"STORAGE_"`
	Provider Provider `envPrefix:"PROVIDER_"`
	Tracker  Tracker  `envPrefix:"TRACKER_"`
	Catalog  Catalog  `envPrefix:"CATALOG_"`
	Query    Query    `envPrefix:"QUERY_"`
}

func Parse() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

func parse(opts env.Options) (*Config, error) {
	conf, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &conf, nil
}
