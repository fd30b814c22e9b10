package config

type HTTP struct {
	Address   string `env:"ADDRESS,expand" envDefault:":8080"`
	StaticDir string `env:"STATIC_DIR,expand" envDefault:"web/dist"`
}
