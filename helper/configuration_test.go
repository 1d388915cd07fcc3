package helper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnvs(t *testing.T) {
	for _, key := range []string{
		"HANDBOT_HOST", "HANDBOT_PORT", "HANDBOT_DOCUMENTS", "HANDBOT_LLM_BACKEND",
		"HANDBOT_LOCAL_LLM_URL", "HANDBOT_REQUEST_LOG", "HANDBOT_REQUEST_LOG_PATH",
		"HANDBOT_IDENTITY", "HANDBOT_STORE", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "HANDBOT_VISION_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "handbot.yaml")
	err := os.WriteFile(path, []byte(content), 0600)
	require.NoError(t, err, "Expected config file to be written")
	return path
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("Defaults with local backend", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("HANDBOT_LLM_BACKEND", "local")

		config, err := LoadConfiguration("")
		require.NoError(t, err, "Expected LoadConfiguration to not return an error")
		assert.Equal(t, 5000, config.Server.Port, "Expected default port")
		assert.Equal(t, "Aetheria Bank", config.Company.Name, "Expected default company name")
		assert.Equal(t, 4, config.Retrieval.TopK, "Expected default top k of 4")
		assert.Equal(t, 20, config.Documents.MinLineLength, "Expected default minimum line length")
		assert.Equal(t, time.Duration(0), config.Session.TTL, "Expected sessions to never expire by default")
		assert.Equal(t, "local", config.LLM.Backend, "Expected backend from environment")
	})

	t.Run("Hosted backend without key fails fast", func(t *testing.T) {
		clearConfigEnvs(t)

		_, err := LoadConfiguration("")
		assert.Error(t, err, "Expected error for openai backend without API key")
		assert.Contains(t, err.Error(), "OPENAI_API_KEY", "Expected error to name the missing key")
	})

	t.Run("YAML file overrides defaults", func(t *testing.T) {
		clearConfigEnvs(t)
		path := writeConfigFile(t, `
server:
  port: 8081
llm:
  backend: claude
  timeout: 5s
  claude:
    api_key: test-key
retrieval:
  top_k: 6
session:
  ttl: 30m
identity:
  backend: static
  employees:
    - employee_id: E-1
      id_number: "001-1234567-8"
      employee_code: "12345"
      hire_date: "2019-03-15"
`)

		config, err := LoadConfiguration(path)
		require.NoError(t, err, "Expected LoadConfiguration to not return an error")
		assert.Equal(t, 8081, config.Server.Port, "Expected port from file")
		assert.Equal(t, "claude", config.LLM.Backend, "Expected backend from file")
		assert.Equal(t, 5*time.Second, config.LLM.Timeout, "Expected timeout from file")
		assert.Equal(t, 6, config.Retrieval.TopK, "Expected top k from file")
		assert.Equal(t, 30*time.Minute, config.Session.TTL, "Expected session ttl from file")
		require.Len(t, config.Identity.Employees, 1, "Expected one static employee")
		assert.Equal(t, "E-1", config.Identity.Employees[0].EmployeeID, "Expected employee id from file")
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("HANDBOT_PORT", "9090")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		path := writeConfigFile(t, "server:\n  port: 8081\n")

		config, err := LoadConfiguration(path)
		require.NoError(t, err, "Expected LoadConfiguration to not return an error")
		assert.Equal(t, 9090, config.Server.Port, "Expected port from environment")
		assert.Equal(t, "sk-test", config.LLM.OpenAI.APIKey, "Expected API key from environment")
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("OPENAI_API_KEY", "sk-test")
		path := writeConfigFile(t, "llm:\n  backend: mystery\n")

		_, err := LoadConfiguration(path)
		assert.Error(t, err, "Expected error for unknown backend")
	})

	t.Run("Invalid port in environment", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("HANDBOT_PORT", "eighty")

		_, err := LoadConfiguration("")
		assert.Error(t, err, "Expected error for non numeric port")
	})

	t.Run("Vision model defaults to the CLIP encoders", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("HANDBOT_LLM_BACKEND", "local")

		config, err := LoadConfiguration("")
		require.NoError(t, err, "Expected LoadConfiguration to not return an error")
		assert.Equal(t, "Xenova/clip-vit-base-patch32", config.Vision.Model, "Expected default vision model")
		assert.Equal(t, "onnx/text_model.onnx", config.Vision.TextOnnx, "Expected default text encoder")
		assert.Equal(t, "onnx/vision_model.onnx", config.Vision.VisionOnnx, "Expected default image encoder")

		t.Setenv("HANDBOT_VISION_MODEL", "org/clip-large")
		config, err = LoadConfiguration("")
		require.NoError(t, err, "Expected LoadConfiguration to not return an error")
		assert.Equal(t, "org/clip-large", config.Vision.Model, "Expected vision model from environment")
	})

	t.Run("Vision model without encoders is rejected", func(t *testing.T) {
		clearConfigEnvs(t)
		t.Setenv("HANDBOT_LLM_BACKEND", "local")
		path := writeConfigFile(t, "vision:\n  text_onnx: \"\"\n")

		_, err := LoadConfiguration(path)
		assert.Error(t, err, "Expected error for a missing text encoder")
	})

	t.Run("Missing file", func(t *testing.T) {
		clearConfigEnvs(t)

		_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err, "Expected error for missing configuration file")
	})
}

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Valid environment", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err, "Expected NewDatabaseConfiguration to not return an error")
		assert.Equal(t, "5433", config.Port, "Expected port from environment")
		assert.Contains(t, config.ConnectionString(), "search_path=public", "Expected schema in connection string")
	})

	t.Run("Missing host", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")
		t.Setenv("DB_HOST", "")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err, "Expected error for missing host")
	})
}

func TestNewError(t *testing.T) {
	t.Run("Wraps with step", func(t *testing.T) {
		inner := os.ErrNotExist
		err := NewError("open file", inner)
		assert.EqualError(t, err, "open file: "+inner.Error(), "Expected step prefix")
		assert.ErrorIs(t, err, os.ErrNotExist, "Expected wrapped error to be preserved")
	})
}
