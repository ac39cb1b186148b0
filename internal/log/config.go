package log

// Default pattern and time layout for the text formatter.
const (
	DefaultPattern = "%time [%level] %caller: %msg%field%n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level   string     `mapstructure:"level"`
	Pattern string     `mapstructure:"pattern"`
	Time    string     `mapstructure:"time"`
	Caller  bool       `mapstructure:"caller"`
	File    FileConfig `mapstructure:"file"`
}
