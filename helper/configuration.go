package helper

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration is the complete handbot configuration.
// Values are resolved as defaults, then the optional YAML file, then the environment.
type Configuration struct {
	Server     ServerConfiguration     `yaml:"server"`
	Company    CompanyConfiguration    `yaml:"company"`
	Documents  DocumentsConfiguration  `yaml:"documents"`
	Embedding  EmbeddingConfiguration  `yaml:"embedding"`
	Retrieval  RetrievalConfiguration  `yaml:"retrieval"`
	LLM        LLMConfiguration        `yaml:"llm"`
	Session    SessionConfiguration    `yaml:"session"`
	RequestLog RequestLogConfiguration `yaml:"request_log"`
	Identity   IdentityConfiguration   `yaml:"identity"`
	Vision     VisionConfiguration     `yaml:"vision"`
}

type ServerConfiguration struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
}

type CompanyConfiguration struct {
	Name    string `yaml:"name" validate:"required"`
	BotName string `yaml:"bot_name" validate:"required"`
}

type DocumentsConfiguration struct {
	// Path is a single document or a directory of documents
	Path          string `yaml:"path" validate:"required"`
	Chunker       string `yaml:"chunker" validate:"oneof=line character"`
	MinLineLength int    `yaml:"min_line_length" validate:"gte=0"`
	ChunkSize     int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap  int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

type EmbeddingConfiguration struct {
	Backend string `yaml:"backend" validate:"oneof=hugot openai"`
	// Model defaults per backend when empty
	Model string `yaml:"model"`
}

type RetrievalConfiguration struct {
	TopK           int    `yaml:"top_k" validate:"gt=0"`
	MaxPromptChars int    `yaml:"max_prompt_chars" validate:"gte=0"`
	Store          string `yaml:"store" validate:"oneof=memory postgres"`
}

type LLMConfiguration struct {
	Backend string              `yaml:"backend" validate:"oneof=openai local gemini claude"`
	Timeout time.Duration       `yaml:"timeout" validate:"gt=0"`
	OpenAI  OpenAIConfiguration `yaml:"openai"`
	Local   LocalConfiguration  `yaml:"local"`
	Gemini  GeminiConfiguration `yaml:"gemini"`
	Claude  ClaudeConfiguration `yaml:"claude"`
}

type OpenAIConfiguration struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type LocalConfiguration struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopK        int     `yaml:"top_k"`
	TopP        float64 `yaml:"top_p"`
}

type GeminiConfiguration struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type ClaudeConfiguration struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SessionConfiguration struct {
	// TTL of a verified session, zero keeps sessions for the process lifetime
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
	ChatTurns int           `yaml:"chat_turns" validate:"gte=0"`
}

type RequestLogConfiguration struct {
	Backend string `yaml:"backend" validate:"oneof=file badger postgres"`
	Path    string `yaml:"path"`
}

type IdentityConfiguration struct {
	Backend   string                `yaml:"backend" validate:"oneof=postgres static"`
	Employees []EmployeeCredentials `yaml:"employees" validate:"dive"`
}

// VisionConfiguration selects the CLIP model scoring ad images.
// The ONNX paths are relative to the model repository.
type VisionConfiguration struct {
	Model      string `yaml:"model" validate:"required"`
	TextOnnx   string `yaml:"text_onnx" validate:"required"`
	VisionOnnx string `yaml:"vision_onnx" validate:"required"`
}

// EmployeeCredentials is a statically configured employee
type EmployeeCredentials struct {
	EmployeeID   string `yaml:"employee_id" validate:"required"`
	IDNumber     string `yaml:"id_number" validate:"required"`
	EmployeeCode string `yaml:"employee_code" validate:"required,numeric"`
	HireDate     string `yaml:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	Department   string `yaml:"department"`
}

// DefaultConfiguration returns the configuration used when nothing is set
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Server: ServerConfiguration{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Company: CompanyConfiguration{
			Name:    "Aetheria Bank",
			BotName: "Asistente Virtual de Aetheria Bank",
		},
		Documents: DocumentsConfiguration{
			Path:          "docs",
			Chunker:       "line",
			MinLineLength: 20,
			ChunkSize:     1000,
			ChunkOverlap:  200,
		},
		Embedding: EmbeddingConfiguration{
			Backend: "hugot",
		},
		Retrieval: RetrievalConfiguration{
			TopK:           4,
			MaxPromptChars: 12000,
			Store:          "memory",
		},
		LLM: LLMConfiguration{
			Backend: "openai",
			Timeout: 60 * time.Second,
			OpenAI: OpenAIConfiguration{
				Model:       "gpt-3.5-turbo",
				Temperature: 0.7,
			},
			Local: LocalConfiguration{
				BaseURL:     "http://127.0.0.1:8080/v1",
				Model:       "mistral-7b-instruct-v0.2",
				MaxTokens:   250,
				Temperature: 0.7,
				TopK:        50,
				TopP:        0.95,
			},
			Gemini: GeminiConfiguration{
				Model:       "gemini-2.0-flash",
				Temperature: 0.7,
			},
			Claude: ClaudeConfiguration{
				Model:       "claude-3-5-haiku-latest",
				MaxTokens:   1024,
				Temperature: 0.7,
			},
		},
		Session: SessionConfiguration{
			ChatTurns: 5,
		},
		RequestLog: RequestLogConfiguration{
			Backend: "file",
			Path:    "request_log.jsonl",
		},
		Identity: IdentityConfiguration{
			Backend: "postgres",
		},
		Vision: VisionConfiguration{
			Model:      "Xenova/clip-vit-base-patch32",
			TextOnnx:   "onnx/text_model.onnx",
			VisionOnnx: "onnx/vision_model.onnx",
		},
	}
}

// LoadConfiguration loads .env, the YAML file at path (if not empty) and the environment.
func LoadConfiguration(path string) (*Configuration, error) {
	// A missing .env is not an error
	_ = godotenv.Load()

	config := DefaultConfiguration()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewError("read configuration file", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, NewError("parse configuration file", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, NewError("apply environment", err)
	}

	if err := config.Validate(); err != nil {
		return nil, NewError("validate configuration", err)
	}

	return config, nil
}

func (c *Configuration) applyEnv() error {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	setString("HANDBOT_HOST", &c.Server.Host)
	setString("HANDBOT_DOCUMENTS", &c.Documents.Path)
	setString("HANDBOT_LLM_BACKEND", &c.LLM.Backend)
	setString("HANDBOT_LOCAL_LLM_URL", &c.LLM.Local.BaseURL)
	setString("HANDBOT_REQUEST_LOG", &c.RequestLog.Backend)
	setString("HANDBOT_REQUEST_LOG_PATH", &c.RequestLog.Path)
	setString("HANDBOT_IDENTITY", &c.Identity.Backend)
	setString("HANDBOT_STORE", &c.Retrieval.Store)
	setString("HANDBOT_VISION_MODEL", &c.Vision.Model)
	setString("OPENAI_API_KEY", &c.LLM.OpenAI.APIKey)
	setString("OPENAI_BASE_URL", &c.LLM.OpenAI.BaseURL)
	setString("GEMINI_API_KEY", &c.LLM.Gemini.APIKey)
	setString("ANTHROPIC_API_KEY", &c.LLM.Claude.APIKey)

	if v := os.Getenv("HANDBOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HANDBOT_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	return nil
}

// Validate checks field constraints and that hosted backends have an API key
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.LLM.Backend {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("llm backend openai requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("llm backend gemini requires GEMINI_API_KEY")
		}
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return fmt.Errorf("llm backend claude requires ANTHROPIC_API_KEY")
		}
	}

	if c.Embedding.Backend == "openai" && c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("openai embeddings require OPENAI_API_KEY")
	}

	if c.RequestLog.Backend != "postgres" && c.RequestLog.Path == "" {
		return fmt.Errorf("request log backend %s requires a path", c.RequestLog.Backend)
	}

	return nil
}
