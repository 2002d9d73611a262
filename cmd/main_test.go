package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/relay"
)

const validConfig = `environment: testing
socket:
  url: ws://localhost:64000/websocket
  reconnect_interval: 1000
  max_reconnect_interval: 30000
  reconnect_decay: 1.5
  timeout_interval: 2000
auth:
  token_url: http://localhost:64000/baselayer/socket_auth_token
  session_cookie_name: session
  token_file: .baselayer/auth_token.yaml
server:
  host: localhost
  port: 64000
  socket_path: /websocket
  token_path: /baselayer/socket_auth_token
  secret_key: test-secret
mqtt:
  enabled: true
  host: localhost
  port: 1883
  client_id: test-client
  topic_prefix: test
  qos: 0
logging:
  level: info
  format: text`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	return path
}

func TestNewApp_ValidConfig(t *testing.T) {
	app, err := NewApp(writeConfig(t, "test_config.yaml", validConfig))
	if err != nil {
		t.Errorf("NewApp() failed with valid config: %v", err)
		return
	}

	if app == nil {
		t.Error("NewApp() returned nil app")
		return
	}

	if app.config.Environment != "testing" {
		t.Errorf("Expected environment 'testing', got '%s'", app.config.Environment)
	}

	if app.config.MQTT.ClientID != "test-client" {
		t.Errorf("Expected client ID 'test-client', got '%s'", app.config.MQTT.ClientID)
	}

	if app.bus == nil {
		t.Error("Expected MQTT bus when mqtt.enabled is true")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	invalidConfig := `environment: invalid_environment
socket:
  url: ""  # Invalid empty url
server:
  port: 0   # Invalid port`

	app, err := NewApp(writeConfig(t, "invalid_config.yaml", invalidConfig))
	if err == nil {
		t.Error("NewApp() should fail with invalid config")
	}

	if app != nil {
		t.Error("NewApp() should return nil app with invalid config")
	}
}

func TestApp_ConfigValidation_Integration(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid complete config",
			configYAML:  validConfig,
			expectError: false,
		},
		{
			name:        "invalid MQTT port",
			configYAML:  strings.Replace(validConfig, "port: 1883", "port: 99999", 1),
			expectError: true,
			errorMsg:    "mqtt port must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			configYAML:  strings.Replace(validConfig, "level: info", "level: invalid_level", 1),
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name:        "http socket url",
			configYAML:  strings.Replace(validConfig, "url: ws://", "url: http://", 1),
			expectError: true,
			errorMsg:    "socket url scheme must be ws or wss",
		},
		{
			name:        "missing secret",
			configYAML:  strings.Replace(validConfig, "secret_key: test-secret", "secret_key: \"\"", 1),
			expectError: true,
			errorMsg:    "server secret key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewApp(writeConfig(t, "test_config.yaml", tt.configYAML))

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errorMsg, err)
				}
				if app != nil {
					t.Error("Expected nil app when error occurs")
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
					return
				}
				if app == nil {
					t.Error("Expected valid app, got nil")
				}
			}
		})
	}
}

func TestDefaultConfigGeneration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "generated_config.yaml")

	err := config.GenerateDefaultConfig(configPath)
	if err != nil {
		t.Errorf("GenerateDefaultConfig() failed: %v", err)
		return
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Default config file was not created")
		return
	}

	app, err := NewApp(configPath)
	if err != nil {
		t.Errorf("Failed to load generated config: %v", err)
		return
	}

	if app.config.Environment != "development" {
		t.Errorf("Expected default environment 'development', got '%s'", app.config.Environment)
	}

	if app.config.Server.Port != 64000 {
		t.Errorf("Expected default server port 64000, got %d", app.config.Server.Port)
	}

	if app.bus != nil {
		t.Error("MQTT is disabled by default, expected no bus")
	}
}

func TestPushRequiresMQTT(t *testing.T) {
	app, err := NewApp(writeConfig(t, "test_config.yaml", strings.Replace(validConfig, "enabled: true", "enabled: false", 1)))
	if err != nil {
		t.Fatalf("NewApp() failed: %v", err)
	}

	err = app.Push("42", "app/REFRESH", json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "mqtt must be enabled") {
		t.Errorf("Expected mqtt disabled error, got: %v", err)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	configPath := writeConfig(t, "test_config.yaml", validConfig)

	out, err := runCommand(t, "--config", configPath, "token", "42")
	if err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	issuer := relay.NewTokenIssuer("test-secret", 15*time.Minute)
	userID, err := issuer.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Issued token does not verify: %v", err)
	}
	if userID != "42" {
		t.Errorf("Expected user '42', got '%s'", userID)
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "baselayer.toml")

	out, err := runCommand(t, "--config", configPath, "generate-config")
	if err != nil {
		t.Fatalf("generate-config failed: %v", err)
	}
	if !strings.Contains(out, configPath) {
		t.Errorf("Expected output to mention %s, got: %s", configPath, out)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Generated TOML config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Generated config is invalid: %v", err)
	}
}

func TestPushCommandRejectsInvalidPayload(t *testing.T) {
	configPath := writeConfig(t, "test_config.yaml", validConfig)

	_, err := runCommand(t, "--config", configPath, "push", "42", "app/REFRESH", "--payload", "{not json")
	if err == nil || !strings.Contains(err.Error(), "payload must be valid JSON") {
		t.Errorf("Expected invalid payload error, got: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"baselayer version", "Git Commit:", "Build Date:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected version output to contain %q, got: %s", want, out)
		}
	}
}
