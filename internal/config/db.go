package config

// Database engines supported by the server.
const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// DB holds the database configuration settings.
type DB struct {
	Engine   string `mapstructure:"engine"` // mysql, postgres or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Extras   string `mapstructure:"extras"` // appended to the DSN as is
	Path     string `mapstructure:"path"`   // sqlite database file
}
