// Package config resolves, parses, validates, and defaults modus configuration.
package config

// Config is the fully materialized runtime configuration used by modus.
type Config struct {
	Audio     AudioConfig
	Modes     ModesConfig
	Commands  CommandsConfig
	Sounds    SoundsConfig
	Indicator IndicatorConfig
	Actions   ActionsConfig
	Health    HealthConfig
	History   HistoryConfig
	Events    EventsConfig
	MQTT      MQTTConfig
	Influx    InfluxConfig
	Log       LogConfig
}

// AudioConfig controls the output sink binding and volume policy.
type AudioConfig struct {
	Sink           string
	MinVolume      int
	MaxVolume      int
	DefaultVolume  int
	VolumeStep     int
	MaxRetries     int
	RetryBackoffMS int
	FadeStepMS     int
}

// ModesConfig locates the mode definition file and its load policy.
type ModesConfig struct {
	Path   string
	Strict bool
}

// CommandsConfig locates the trigger-phrase catalog.
type CommandsConfig struct {
	Path     string
	WakeWord string
}

// SoundsConfig controls the notification sound catalog and player.
type SoundsConfig struct {
	Enable    bool
	Dir       string
	Player    CommandConfig
	ErrorID   string
	WarningID string
}

// IndicatorConfig controls desktop notifications.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	ErrorTimeoutMS int
}

// ActionsConfig holds external commands and limits used by action handlers.
type ActionsConfig struct {
	ScriptTimeoutMS int
	URIOpener       CommandConfig
	Display         CommandConfig
}

// HealthConfig controls the system health monitor and gRPC health endpoint.
type HealthConfig struct {
	IntervalMS    int
	CriticalRAMGB float64
	GRPCAddr      string
}

// HistoryConfig controls the sqlite execution history.
type HistoryConfig struct {
	Enable bool
	Path   string
}

// EventsConfig controls the websocket event stream.
type EventsConfig struct {
	Addr string
}

// MQTTConfig controls the MQTT event publisher.
type MQTTConfig struct {
	Enable      bool
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// InfluxConfig controls the InfluxDB metrics writer.
type InfluxConfig struct {
	Enable bool
	URL    string
	Token  string
	Org    string
	Bucket string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
