package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/chriskillpack/mldemo"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DB          string `yaml:"db"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	Caption struct {
		Backend string `yaml:"backend"`
		Model   string `yaml:"model"`
	} `yaml:"caption"`

	Generate struct {
		Backend string            `yaml:"backend"`
		Models  map[string]string `yaml:"models"` // model tag -> backend model name
	} `yaml:"generate"`

	RAG struct {
		EmbedBackend  string `yaml:"embed_backend"`
		EmbedModel    string `yaml:"embed_model"`
		LLMBackend    string `yaml:"llm_backend"`
		LLMModel      string `yaml:"llm_model"`
		TopK          int    `yaml:"top_k"`
		RatePerMinute int    `yaml:"rate_per_minute"`
	} `yaml:"rag"`

	Llama struct {
		Server string `yaml:"server"`
		Seed   int    `yaml:"seed"`
	} `yaml:"llama"`

	Ollama struct {
		Server       string `yaml:"server"`
		CaptionModel string `yaml:"caption_model"`
		EmbedModel   string `yaml:"embed_model"`
		LLMModel     string `yaml:"llm_model"`
	} `yaml:"ollama"`

	HF struct {
		BaseURL  string `yaml:"base_url"`
		TokenEnv string `yaml:"token_env"`
	} `yaml:"hf"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Port:        "8080",
		TimeoutSecs: 60,
	}
	cfg.Caption.Backend = "hf"
	cfg.Caption.Model = mldemo.DefaultCaptionModel
	cfg.Generate.Backend = "hf"
	cfg.RAG.EmbedBackend = "hf"
	cfg.RAG.EmbedModel = mldemo.DefaultEmbedModel
	cfg.RAG.LLMBackend = "openai"
	cfg.RAG.TopK = 4
	cfg.RAG.RatePerMinute = 20
	cfg.Llama.Seed = 385480504
	cfg.Ollama.CaptionModel = "llava"
	cfg.Ollama.EmbedModel = "all-minilm"
	cfg.Ollama.LLMModel = "llama3.2"
	cfg.HF.TokenEnv = "HF_TOKEN"
	return cfg
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// registerConfigFlags defines the flags that override config file settings.
// The defaults shown are those of defaultConfig.
func registerConfigFlags(fs *flag.FlagSet) {
	def := defaultConfig()
	fs.String("port", def.Port, "Port to serve on")
	fs.String("db", def.DB, "Path to run history database, disabled if empty")
	fs.Int("timeout", def.TimeoutSecs, "Backend request timeout in seconds")
	fs.String("caption-backend", def.Caption.Backend, "Captioning backend: hf, llama or ollama")
	fs.String("generate-backend", def.Generate.Backend, "Text generation backend: hf or ollama")
	fs.String("embed-backend", def.RAG.EmbedBackend, "Q&A embedding backend: hf, openai, llama or ollama")
	fs.String("llm-backend", def.RAG.LLMBackend, "Q&A answering backend: openai, llama or ollama")
	fs.String("llama", def.Llama.Server, "Address of running llama server, typically http://localhost:8080")
	fs.Int("seed", def.Llama.Seed, "Random seed to llama")
	fs.String("ollama", def.Ollama.Server, "Address of running ollama server, typically http://localhost:11434")
}

// applyFlags overrides cfg with the flags that were set explicitly on fs.
func (c *Config) applyFlags(fs *flag.FlagSet) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "port":
			c.Port = v
		case "db":
			c.DB = v
		case "timeout":
			c.TimeoutSecs, err = strconv.Atoi(v)
		case "caption-backend":
			c.Caption.Backend = v
		case "generate-backend":
			c.Generate.Backend = v
		case "embed-backend":
			c.RAG.EmbedBackend = v
		case "llm-backend":
			c.RAG.LLMBackend = v
		case "llama":
			c.Llama.Server = v
		case "seed":
			c.Llama.Seed, err = strconv.Atoi(v)
		case "ollama":
			c.Ollama.Server = v
		}
	})
	return err
}

func (c *Config) initOptions() (mldemo.InitOptions, error) {
	models := make(map[mldemo.ModelTag]string, len(c.Generate.Models))
	for name, model := range c.Generate.Models {
		tag, err := mldemo.ParseModelTag(name)
		if err != nil {
			return mldemo.InitOptions{}, fmt.Errorf("generate.models: %w", err)
		}
		models[tag] = model
	}

	// The OpenAI embedding models have their own default
	embedModel := c.RAG.EmbedModel
	if c.RAG.EmbedBackend == "openai" && embedModel == mldemo.DefaultEmbedModel {
		embedModel = ""
	}

	return mldemo.InitOptions{
		CaptionBackend:     c.Caption.Backend,
		CaptionModel:       c.Caption.Model,
		GenerateBackend:    c.Generate.Backend,
		GenerateModels:     models,
		EmbedBackend:       c.RAG.EmbedBackend,
		EmbedModel:         embedModel,
		LLMBackend:         c.RAG.LLMBackend,
		LLMModel:           c.RAG.LLMModel,
		TopK:               c.RAG.TopK,
		RatePerMinute:      c.RAG.RatePerMinute,
		LlamaServer:        c.Llama.Server,
		LlamaSeed:          c.Llama.Seed,
		OllamaServer:       c.Ollama.Server,
		OllamaCaptionModel: c.Ollama.CaptionModel,
		OllamaEmbedModel:   c.Ollama.EmbedModel,
		OllamaLLMModel:     c.Ollama.LLMModel,
		HFBaseURL:          c.HF.BaseURL,
		HFToken:            os.Getenv(c.HF.TokenEnv),
		HttpClient: &http.Client{
			Timeout: time.Duration(c.TimeoutSecs) * time.Second,
		},
	}, nil
}
