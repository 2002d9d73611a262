package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DEFAULT_RECONNECT_INTERVAL = 1000
const DEFAULT_MAX_RECONNECT_INTERVAL = 30000
const DEFAULT_RECONNECT_DECAY = 1.5
const DEFAULT_TIMEOUT_INTERVAL = 2000
const DEFAULT_FALLBACK_DELAY = 1000
const DEFAULT_AUTH_REQUEST_TIMEOUT = 5000
const DEFAULT_HEARTBEAT_INTERVAL = 45
const DEFAULT_MAX_AUTH_FAILURES = 3
const DEFAULT_TOKEN_LIFETIME = 15

func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close config file: %v\n", closeErr)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if isTOML(filename) {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overrideWithEnv(&config)

	return &config, nil
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

func overrideWithEnv(config *Config) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	if env := os.Getenv("BASELAYER_ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	if u := os.Getenv("BASELAYER_SOCKET_URL"); u != "" {
		config.Socket.URL = u
	}
	envInt("BASELAYER_SOCKET_RECONNECT_INTERVAL", &config.Socket.ReconnectInterval)
	envInt("BASELAYER_SOCKET_MAX_RECONNECT_INTERVAL", &config.Socket.MaxReconnectInterval)
	if decay := os.Getenv("BASELAYER_SOCKET_RECONNECT_DECAY"); decay != "" {
		if d, err := strconv.ParseFloat(decay, 64); err == nil {
			config.Socket.ReconnectDecay = d
		}
	}
	envInt("BASELAYER_SOCKET_TIMEOUT_INTERVAL", &config.Socket.TimeoutInterval)
	envInt("BASELAYER_SOCKET_MAX_RECONNECT_ATTEMPTS", &config.Socket.MaxReconnectAttempts)

	if tokenURL := os.Getenv("BASELAYER_AUTH_TOKEN_URL"); tokenURL != "" {
		config.Auth.TokenURL = tokenURL
	}
	if name := os.Getenv("BASELAYER_AUTH_SESSION_COOKIE_NAME"); name != "" {
		config.Auth.SessionCookieName = name
	}
	if cookie := os.Getenv("BASELAYER_AUTH_SESSION_COOKIE"); cookie != "" {
		config.Auth.SessionCookie = cookie
	}
	if tokenFile := os.Getenv("BASELAYER_AUTH_TOKEN_FILE"); tokenFile != "" {
		config.Auth.TokenFile = tokenFile
	}
	envInt("BASELAYER_AUTH_FALLBACK_DELAY", &config.Auth.FallbackDelay)
	envInt("BASELAYER_AUTH_REQUEST_TIMEOUT", &config.Auth.RequestTimeout)

	if host := os.Getenv("BASELAYER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	envInt("BASELAYER_SERVER_PORT", &config.Server.Port)
	if secret := os.Getenv("BASELAYER_SERVER_SECRET_KEY"); secret != "" {
		config.Server.SecretKey = secret
	}
	envInt("BASELAYER_SERVER_HEARTBEAT_INTERVAL", &config.Server.HeartbeatInterval)
	envInt("BASELAYER_SERVER_MAX_AUTH_FAILURES", &config.Server.MaxAuthFailures)
	envInt("BASELAYER_SERVER_TOKEN_LIFETIME", &config.Server.TokenLifetime)

	if enabled := os.Getenv("BASELAYER_MQTT_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.MQTT.Enabled = e
		}
	}
	if host := os.Getenv("BASELAYER_MQTT_HOST"); host != "" {
		config.MQTT.Host = host
	}
	envInt("BASELAYER_MQTT_PORT", &config.MQTT.Port)
	if username := os.Getenv("BASELAYER_MQTT_USERNAME"); username != "" {
		config.MQTT.Username = username
	}
	if password := os.Getenv("BASELAYER_MQTT_PASSWORD"); password != "" {
		config.MQTT.Password = password
	}
	if useTLS := os.Getenv("BASELAYER_MQTT_USE_TLS"); useTLS != "" {
		if t, err := strconv.ParseBool(useTLS); err == nil {
			config.MQTT.UseTLS = t
		}
	}
	if clientID := os.Getenv("BASELAYER_MQTT_CLIENT_ID"); clientID != "" {
		config.MQTT.ClientID = clientID
	}
	if topicPrefix := os.Getenv("BASELAYER_MQTT_TOPIC_PREFIX"); topicPrefix != "" {
		config.MQTT.TopicPrefix = topicPrefix
	}
	if qos := os.Getenv("BASELAYER_MQTT_QOS"); qos != "" {
		if q, err := strconv.ParseUint(qos, 10, 8); err == nil {
			config.MQTT.QoS = byte(q)
		}
	}

	if level := os.Getenv("BASELAYER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("BASELAYER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if file := os.Getenv("BASELAYER_LOG_FILE"); file != "" {
		config.Logging.File = file
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func SaveConfig(config *Config, filename string) error {
	var data []byte
	if isTOML(filename) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close config file: %v\n", closeErr)
		}
	}()

	_, err = file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func LoadOrCreateConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		config := DefaultConfig()

		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("default config validation failed: %w", err)
		}

		if err := SaveConfig(config, filename); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return config, nil
	}

	config, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func GenerateDefaultConfig(filename string) error {
	config := DefaultConfig()
	return SaveConfig(config, filename)
}

func millis(ms, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *SocketConfig) GetReconnectInterval() time.Duration {
	return millis(s.ReconnectInterval, DEFAULT_RECONNECT_INTERVAL)
}

func (s *SocketConfig) GetMaxReconnectInterval() time.Duration {
	return millis(s.MaxReconnectInterval, DEFAULT_MAX_RECONNECT_INTERVAL)
}

func (s *SocketConfig) GetTimeoutInterval() time.Duration {
	return millis(s.TimeoutInterval, DEFAULT_TIMEOUT_INTERVAL)
}

func (s *SocketConfig) GetReconnectDecay() float64 {
	if s.ReconnectDecay < 1 {
		return DEFAULT_RECONNECT_DECAY
	}
	return s.ReconnectDecay
}

func (a *AuthConfig) GetFallbackDelay() time.Duration {
	return millis(a.FallbackDelay, DEFAULT_FALLBACK_DELAY)
}

func (a *AuthConfig) GetRequestTimeout() time.Duration {
	return millis(a.RequestTimeout, DEFAULT_AUTH_REQUEST_TIMEOUT)
}

func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) GetHeartbeatInterval() time.Duration {
	if s.HeartbeatInterval <= 0 {
		return time.Duration(DEFAULT_HEARTBEAT_INTERVAL) * time.Second
	}
	return time.Duration(s.HeartbeatInterval) * time.Second
}

func (s *ServerConfig) GetTokenLifetime() time.Duration {
	if s.TokenLifetime <= 0 {
		return time.Duration(DEFAULT_TOKEN_LIFETIME) * time.Minute
	}
	return time.Duration(s.TokenLifetime) * time.Minute
}

func (m *MQTTConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if m.UseTLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Host, m.Port)
}

func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Socket: SocketConfig{
			URL:                  "ws://localhost:64000/websocket",
			ReconnectInterval:    DEFAULT_RECONNECT_INTERVAL,
			MaxReconnectInterval: DEFAULT_MAX_RECONNECT_INTERVAL,
			ReconnectDecay:       DEFAULT_RECONNECT_DECAY,
			TimeoutInterval:      DEFAULT_TIMEOUT_INTERVAL,
			MaxReconnectAttempts: 0,
		},
		Auth: AuthConfig{
			TokenURL:          "http://localhost:64000/baselayer/socket_auth_token",
			SessionCookieName: "session",
			SessionCookie:     "",
			TokenFile:         ".baselayer/auth_token.yaml",
			FallbackDelay:     DEFAULT_FALLBACK_DELAY,
			RequestTimeout:    DEFAULT_AUTH_REQUEST_TIMEOUT,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              64000,
			SocketPath:        "/websocket",
			TokenPath:         "/baselayer/socket_auth_token",
			SecretKey:         "abc01234",
			HeartbeatInterval: DEFAULT_HEARTBEAT_INTERVAL,
			MaxAuthFailures:   DEFAULT_MAX_AUTH_FAILURES,
			TokenLifetime:     DEFAULT_TOKEN_LIFETIME,
			Sessions:          map[string]string{},
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Host:        "localhost",
			Port:        1883,
			ClientID:    "baselayer",
			TopicPrefix: "baselayer",
			QoS:         0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Socket.Validate(); err != nil {
		return fmt.Errorf("socket config validation failed: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config validation failed: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if c.MQTT.Enabled {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt config validation failed: %w", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	validEnvs := []string{"development", "production", "testing"}
	found := false
	for _, env := range validEnvs {
		if c.Environment == env {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid environment '%s', must be one of: %s", c.Environment, strings.Join(validEnvs, ", "))
	}

	return nil
}

func (s *SocketConfig) Validate() error {
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil || s.URL == "" {
		return fmt.Errorf("socket url must be a valid URL, got '%s'", s.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("socket url scheme must be ws or wss, got '%s'", u.Scheme)
	}

	if s.ReconnectInterval < 0 {
		return fmt.Errorf("socket reconnect interval must be non-negative, got %d", s.ReconnectInterval)
	}

	if s.MaxReconnectInterval < 0 {
		return fmt.Errorf("socket max reconnect interval must be non-negative, got %d", s.MaxReconnectInterval)
	}

	if s.MaxReconnectInterval > 0 && s.MaxReconnectInterval < s.ReconnectInterval {
		return fmt.Errorf("socket max reconnect interval (%d) must not be below reconnect interval (%d)", s.MaxReconnectInterval, s.ReconnectInterval)
	}

	if s.ReconnectDecay != 0 && s.ReconnectDecay < 1 {
		return fmt.Errorf("socket reconnect decay must be at least 1, got %v", s.ReconnectDecay)
	}

	if s.TimeoutInterval < 0 {
		return fmt.Errorf("socket timeout interval must be non-negative, got %d", s.TimeoutInterval)
	}

	if s.MaxReconnectAttempts < 0 {
		return fmt.Errorf("socket max reconnect attempts must be non-negative, got %d", s.MaxReconnectAttempts)
	}

	return nil
}

func (a *AuthConfig) Validate() error {
	u, err := url.Parse(strings.TrimSpace(a.TokenURL))
	if err != nil || a.TokenURL == "" {
		return fmt.Errorf("auth token url must be a valid URL, got '%s'", a.TokenURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("auth token url scheme must be http or https, got '%s'", u.Scheme)
	}

	if a.SessionCookie != "" && strings.TrimSpace(a.SessionCookieName) == "" {
		return fmt.Errorf("auth session cookie name cannot be empty when a session cookie is set")
	}

	if a.FallbackDelay < 0 {
		return fmt.Errorf("auth fallback delay must be non-negative, got %d", a.FallbackDelay)
	}

	if a.RequestTimeout < 0 {
		return fmt.Errorf("auth request timeout must be non-negative, got %d", a.RequestTimeout)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", s.Port)
	}

	if !strings.HasPrefix(s.SocketPath, "/") {
		return fmt.Errorf("server socket path must start with '/', got '%s'", s.SocketPath)
	}

	if !strings.HasPrefix(s.TokenPath, "/") {
		return fmt.Errorf("server token path must start with '/', got '%s'", s.TokenPath)
	}

	if s.SocketPath == s.TokenPath {
		return fmt.Errorf("server socket path and token path must differ, both are '%s'", s.SocketPath)
	}

	if strings.TrimSpace(s.SecretKey) == "" {
		return fmt.Errorf("server secret key cannot be empty")
	}

	if s.MaxAuthFailures < 0 {
		return fmt.Errorf("server max auth failures must be non-negative, got %d", s.MaxAuthFailures)
	}

	return nil
}

func (m *MQTTConfig) Validate() error {
	if strings.TrimSpace(m.Host) == "" {
		return fmt.Errorf("mqtt host cannot be empty")
	}

	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("mqtt port must be between 1 and 65535, got %d", m.Port)
	}

	if strings.TrimSpace(m.ClientID) == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}

	if strings.TrimSpace(m.TopicPrefix) == "" {
		return fmt.Errorf("mqtt topic prefix cannot be empty")
	}

	if m.QoS > 2 {
		return fmt.Errorf("mqtt QoS must be 0, 1, or 2, got %d", m.QoS)
	}

	if strings.HasPrefix(m.TopicPrefix, "/") || strings.HasSuffix(m.TopicPrefix, "/") {
		return fmt.Errorf("mqtt topic prefix should not start or end with '/', got '%s'", m.TopicPrefix)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	found := false
	level := strings.ToLower(l.Level)
	for _, validLevel := range validLevels {
		if level == validLevel {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level '%s', must be one of: %s", l.Level, strings.Join(validLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	found = false
	format := strings.ToLower(l.Format)
	for _, validFormat := range validFormats {
		if format == validFormat {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format '%s', must be one of: %s", l.Format, strings.Join(validFormats, ", "))
	}

	return nil
}
