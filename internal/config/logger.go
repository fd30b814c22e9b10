package config

import "log/slog"

type Logger struct {
	// Level accepts slog level names such as DEBUG, INFO or WARN+2.
	Level slog.Level `env:"LEVEL" envDefault:"INFO"`
}
