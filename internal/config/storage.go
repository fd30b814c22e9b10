package config

type Storage struct {
	DSN string `env:"DSN,expand" envDefault:"data/taskboard.db"`

	// QueueSize bounds the number of writes waiting for the database.
	QueueSize int `env:"QUEUE_SIZE" envDefault:"256"`
}
