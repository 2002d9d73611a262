package config

type Config struct {
	Environment string        `yaml:"environment" toml:"environment" env:"BASELAYER_ENVIRONMENT"`
	Socket      SocketConfig  `yaml:"socket" toml:"socket"`
	Auth        AuthConfig    `yaml:"auth" toml:"auth"`
	Server      ServerConfig  `yaml:"server" toml:"server"`
	MQTT        MQTTConfig    `yaml:"mqtt" toml:"mqtt"`
	Logging     LoggingConfig `yaml:"logging" toml:"logging"`
}

// SocketConfig configures the reconnecting client transport. Intervals are
// in milliseconds.
type SocketConfig struct {
	URL                  string  `yaml:"url" toml:"url" env:"BASELAYER_SOCKET_URL"`
	ReconnectInterval    int     `yaml:"reconnect_interval" toml:"reconnect_interval" env:"BASELAYER_SOCKET_RECONNECT_INTERVAL"`
	MaxReconnectInterval int     `yaml:"max_reconnect_interval" toml:"max_reconnect_interval" env:"BASELAYER_SOCKET_MAX_RECONNECT_INTERVAL"`
	ReconnectDecay       float64 `yaml:"reconnect_decay" toml:"reconnect_decay" env:"BASELAYER_SOCKET_RECONNECT_DECAY"`
	TimeoutInterval      int     `yaml:"timeout_interval" toml:"timeout_interval" env:"BASELAYER_SOCKET_TIMEOUT_INTERVAL"`
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts" toml:"max_reconnect_attempts" env:"BASELAYER_SOCKET_MAX_RECONNECT_ATTEMPTS"`
}

type AuthConfig struct {
	TokenURL          string `yaml:"token_url" toml:"token_url" env:"BASELAYER_AUTH_TOKEN_URL"`
	SessionCookieName string `yaml:"session_cookie_name" toml:"session_cookie_name" env:"BASELAYER_AUTH_SESSION_COOKIE_NAME"`
	SessionCookie     string `yaml:"session_cookie" toml:"session_cookie" env:"BASELAYER_AUTH_SESSION_COOKIE"`
	TokenFile         string `yaml:"token_file" toml:"token_file" env:"BASELAYER_AUTH_TOKEN_FILE"`
	FallbackDelay     int    `yaml:"fallback_delay" toml:"fallback_delay" env:"BASELAYER_AUTH_FALLBACK_DELAY"`
	RequestTimeout    int    `yaml:"request_timeout" toml:"request_timeout" env:"BASELAYER_AUTH_REQUEST_TIMEOUT"`
}

type ServerConfig struct {
	Host              string            `yaml:"host" toml:"host" env:"BASELAYER_SERVER_HOST"`
	Port              int               `yaml:"port" toml:"port" env:"BASELAYER_SERVER_PORT"`
	SocketPath        string            `yaml:"socket_path" toml:"socket_path"`
	TokenPath         string            `yaml:"token_path" toml:"token_path"`
	SecretKey         string            `yaml:"secret_key" toml:"secret_key" env:"BASELAYER_SERVER_SECRET_KEY"`
	HeartbeatInterval int               `yaml:"heartbeat_interval" toml:"heartbeat_interval" env:"BASELAYER_SERVER_HEARTBEAT_INTERVAL"`
	MaxAuthFailures   int               `yaml:"max_auth_failures" toml:"max_auth_failures" env:"BASELAYER_SERVER_MAX_AUTH_FAILURES"`
	TokenLifetime     int               `yaml:"token_lifetime" toml:"token_lifetime" env:"BASELAYER_SERVER_TOKEN_LIFETIME"`
	Sessions          map[string]string `yaml:"sessions" toml:"sessions"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled" env:"BASELAYER_MQTT_ENABLED"`
	Host        string `yaml:"host" toml:"host" env:"BASELAYER_MQTT_HOST"`
	Port        int    `yaml:"port" toml:"port" env:"BASELAYER_MQTT_PORT"`
	Username    string `yaml:"username" toml:"username" env:"BASELAYER_MQTT_USERNAME"`
	Password    string `yaml:"password" toml:"password" env:"BASELAYER_MQTT_PASSWORD"`
	UseTLS      bool   `yaml:"use_tls" toml:"use_tls" env:"BASELAYER_MQTT_USE_TLS"`
	ClientID    string `yaml:"client_id" toml:"client_id" env:"BASELAYER_MQTT_CLIENT_ID"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix" env:"BASELAYER_MQTT_TOPIC_PREFIX"`
	QoS         byte   `yaml:"qos" toml:"qos" env:"BASELAYER_MQTT_QOS"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"BASELAYER_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"BASELAYER_LOG_FORMAT"`
	File   string `yaml:"file" toml:"file" env:"BASELAYER_LOG_FILE"`
}
