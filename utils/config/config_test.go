package config

import (
	"encoding/json"
	"os"
	"testing"
)

type TestConfig struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type defaultedConfig struct {
	Scheduler string `json:"scheduler"`
	Pages     int    `json:"pages"`
}

func (c *defaultedConfig) ApplyDefaults() {
	if c.Pages == 0 {
		c.Pages = 64
	}
}

func writeTempConfig(t *testing.T, value any) string {
	tempFile, err := os.CreateTemp(t.TempDir(), "testconfig")
	if err != nil {
		t.Fatalf("Failed to create temporary file: %v", err)
	}
	defer tempFile.Close()

	if err := json.NewEncoder(tempFile).Encode(value); err != nil {
		t.Fatalf("Failed to write temporary file: %v", err)
	}
	return tempFile.Name()
}

func TestSetupConfig(t *testing.T) {
	validConfig := TestConfig{Name: "test", Value: 123}
	path := writeTempConfig(t, validConfig)

	var config TestConfig
	err := setupConfig(path, &config)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if config != validConfig {
		t.Errorf("Expected config to be %v, got: %v", validConfig, config)
	}
}

func TestSetupConfig_ThrowError(t *testing.T) {
	err := setupConfig("nonexistent.json", &TestConfig{})
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestSetupConfig_UnknownField(t *testing.T) {
	path := writeTempConfig(t, map[string]any{"name": "x", "sheduler": "lottery"})

	if err := setupConfig(path, &TestConfig{}); err == nil {
		t.Error("Expected error for unknown field, got nil")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, map[string]any{"scheduler": "lottery"})

	config, err := Load[defaultedConfig](path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if config.Scheduler != "lottery" || config.Pages != 64 {
		t.Errorf("Expected {lottery 64}, got: %+v", *config)
	}
}

func TestInitConfig_PointerToPointer(t *testing.T) {
	path := writeTempConfig(t, map[string]any{"scheduler": "priority", "pages": 8})

	var config *defaultedConfig
	InitConfig(path, &config)

	if config == nil || config.Scheduler != "priority" || config.Pages != 8 {
		t.Errorf("Expected {priority 8}, got: %+v", config)
	}
}

func TestInitConfig_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for non-existent file")
		}
	}()

	var config TestConfig
	InitConfig("nonexistent.json", &config)
}
