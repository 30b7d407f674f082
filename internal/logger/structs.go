package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool `mapstructure:"enabled"`
	UseConsoleWriter bool `mapstructure:"useConsoleWriter"`
}

// Rotation configures one rolling log file.
type Rotation struct {
	// File name inside LogFile.Path.
	Name       string `mapstructure:"name"`
	MaxSize    int    `mapstructure:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
}

// LogFile implements a file based logger. Each level group rolls its own file.
type LogFile struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	Access Rotation `mapstructure:"access"`
	Error  Rotation `mapstructure:"error"`
	Info   Rotation `mapstructure:"info"`
	Trace  Rotation `mapstructure:"trace"`
	Warn   Rotation `mapstructure:"warn"`
}

// Log implements the logger config.
type Log struct {
	LogLevel string `mapstructure:"logLevel"` // trace, debug, info, warn, error.

	// EnableAccessLogToConsole if true the web service logs every request to the console.
	// Does not overrule flag Console.Enabled!
	// If Console.Enabled is false, still no access log output to the console will be shown.
	EnableAccessLogToConsole bool `mapstructure:"enableAccessLogToConsole"`
	ReportCaller             bool `mapstructure:"reportCaller"`
	DisableCheckAlive        bool `mapstructure:"disableCheckAlive"` // do not log /checkalive calls

	AppName     string `mapstructure:"appName"`
	ServiceName string `mapstructure:"serviceName"`

	// Console used mainly for docker and dev.
	Console Console `mapstructure:"console"`

	File LogFile `mapstructure:"file"`
}
