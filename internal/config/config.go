package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Retrieval strategies.
const (
	StrategySimilarity = "similarity"
	StrategyDiversity  = "diversity"
	// StrategyMMR is accepted as an alias for StrategyDiversity.
	StrategyMMR = "mmr"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// ProjectConfigName is the project-level configuration file name.
const ProjectConfigName = ".docrag.yaml"

// Config represents the complete docrag configuration.
// Every component receives the section it needs through its constructor.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures where documents are read and where the index lives.
type PathsConfig struct {
	// DocumentRoot is searched recursively for supported files.
	DocumentRoot string `yaml:"docs_path" json:"docs_path"`
	// IndexLocation is the snapshot directory.
	IndexLocation string `yaml:"index_path" json:"index_path"`
}

// IndexConfig configures building and persisting the index.
type IndexConfig struct {
	// Rebuild selects build+persist over loading the existing snapshot.
	// There is no fallback between the two.
	Rebuild bool `yaml:"rebuild" json:"rebuild"`
	// Verify reloads a freshly persisted snapshot and compares it to the in-memory index.
	Verify bool `yaml:"verify" json:"verify"`
	// Workers bounds concurrent embedding calls during build.
	Workers int `yaml:"workers" json:"workers"`
	// Metric is "cos" or "l2".
	Metric   string `yaml:"metric" json:"metric"`
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "openai" (any OpenAI-compatible endpoint) or "static".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model identifier. Empty uses the provider default.
	Model string `yaml:"model" json:"model"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// BaseURL is the OpenAI-compatible endpoint. Empty uses the provider default.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv  string        `yaml:"api_key_env" json:"api_key_env"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the number of query embeddings kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	// Strategy is "similarity" or "diversity" ("mmr" is accepted).
	Strategy string `yaml:"strategy" json:"strategy"`
	TopK     int    `yaml:"top_k" json:"top_k"`
	// Lambda trades relevance against redundancy for diversity, in (0, 1].
	Lambda float64 `yaml:"lambda" json:"lambda"`
	// FetchK is the candidate pool size for diversity.
	FetchK int `yaml:"fetch_k" json:"fetch_k"`
	// Approximate lets indexes above ExactThreshold take candidates from the
	// HNSW graph. Off means every query scores every entry.
	Approximate bool `yaml:"approximate" json:"approximate"`
	// ExactThreshold is the index size up to which approximate search is
	// still exhaustive.
	ExactThreshold int `yaml:"exact_threshold" json:"exact_threshold"`
}

// GenerationConfig configures the answer generation provider.
type GenerationConfig struct {
	// Provider is "ollama" or "openai" (any OpenAI-compatible endpoint, Groq by default).
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens  int           `yaml:"max_tokens" json:"max_tokens"`
	// MaxContextChars bounds the context section of the prompt.
	MaxContextChars int `yaml:"max_context_chars" json:"max_context_chars"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// FilePath is the log file. Empty uses the default state directory.
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DocumentRoot:  "./my_docs",
			IndexLocation: "./index_store",
		},
		Index: IndexConfig{
			Rebuild:  false,
			Verify:   false,
			Workers:  min(runtime.NumCPU(), 8),
			Metric:   "cos",
			M:        16,
			EfSearch: 64,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    800,
			ChunkOverlap: 120,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  ProviderOllama,
			Model:     "", // Empty uses the provider default
			BatchSize: 32,
			Timeout:   60 * time.Second,
			CacheSize: 1000,
		},
		Retrieval: RetrievalConfig{
			Strategy:       StrategyDiversity,
			TopK:           4,
			Lambda:         0.5,
			FetchK:         20,
			ExactThreshold: 4096,
		},
		Generation: GenerationConfig{
			Provider:        ProviderOllama,
			Timeout:         120 * time.Second,
			MaxTokens:       1024,
			MaxContextChars: 12000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docrag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docrag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/docrag/config.yaml)
//  3. Project config (.docrag.yaml in dir)
//  4. Environment variables (DOCRAG_*)
func Load(dir string) (*Config, error) {
	return LoadFrom(dir, "")
}

// LoadFrom is Load with an explicit config file applied after the project config.
// An explicit file that does not exist is an error.
func LoadFrom(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, derrors.New(derrors.ErrCodeConfigInvalid, "failed to load user config", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, derrors.New(derrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicitPath), nil)
		}
		var parsed Config
		if err := readYAML(explicitPath, &parsed); err != nil {
			return nil, err
		}
		cfg.mergeWith(&parsed)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .docrag.yaml or .docrag.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".docrag.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

// readYAML parses path into out.
func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return derrors.New(derrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return derrors.New(derrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if other.Paths.DocumentRoot != "" {
		c.Paths.DocumentRoot = other.Paths.DocumentRoot
	}
	if other.Paths.IndexLocation != "" {
		c.Paths.IndexLocation = other.Paths.IndexLocation
	}

	// Index. Booleans only switch on from files; env vars can switch them off.
	if other.Index.Rebuild {
		c.Index.Rebuild = true
	}
	if other.Index.Verify {
		c.Index.Verify = true
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.Metric != "" {
		c.Index.Metric = other.Index.Metric
	}
	if other.Index.M != 0 {
		c.Index.M = other.Index.M
	}
	if other.Index.EfSearch != 0 {
		c.Index.EfSearch = other.Index.EfSearch
	}

	// Chunking
	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.APIKeyEnv != "" {
		c.Embeddings.APIKeyEnv = other.Embeddings.APIKeyEnv
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Retrieval
	if other.Retrieval.Strategy != "" {
		c.Retrieval.Strategy = other.Retrieval.Strategy
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.Lambda != 0 {
		c.Retrieval.Lambda = other.Retrieval.Lambda
	}
	if other.Retrieval.FetchK != 0 {
		c.Retrieval.FetchK = other.Retrieval.FetchK
	}
	if other.Retrieval.Approximate {
		c.Retrieval.Approximate = true
	}
	if other.Retrieval.ExactThreshold != 0 {
		c.Retrieval.ExactThreshold = other.Retrieval.ExactThreshold
	}

	// Generation
	if other.Generation.Provider != "" {
		c.Generation.Provider = other.Generation.Provider
	}
	if other.Generation.Model != "" {
		c.Generation.Model = other.Generation.Model
	}
	if other.Generation.OllamaHost != "" {
		c.Generation.OllamaHost = other.Generation.OllamaHost
	}
	if other.Generation.BaseURL != "" {
		c.Generation.BaseURL = other.Generation.BaseURL
	}
	if other.Generation.APIKeyEnv != "" {
		c.Generation.APIKeyEnv = other.Generation.APIKeyEnv
	}
	if other.Generation.Timeout != 0 {
		c.Generation.Timeout = other.Generation.Timeout
	}
	if other.Generation.MaxTokens != 0 {
		c.Generation.MaxTokens = other.Generation.MaxTokens
	}
	if other.Generation.MaxContextChars != 0 {
		c.Generation.MaxContextChars = other.Generation.MaxContextChars
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies DOCRAG_* environment variable overrides.
// Malformed numeric values are ignored so the file or default value stands.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCRAG_DOCS_PATH"); v != "" {
		c.Paths.DocumentRoot = v
	}
	if v := os.Getenv("DOCRAG_INDEX_PATH"); v != "" {
		c.Paths.IndexLocation = v
	}
	if v := os.Getenv("DOCRAG_REBUILD_INDEX"); v != "" {
		c.Index.Rebuild = parseBool(v)
	}
	if v := os.Getenv("DOCRAG_VERIFY_INDEX"); v != "" {
		c.Index.Verify = parseBool(v)
	}

	if v := os.Getenv("DOCRAG_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCRAG_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Generation.OllamaHost = v
	}

	if v := os.Getenv("DOCRAG_SEARCH_TYPE"); v != "" {
		c.Retrieval.Strategy = v
	}
	if v := os.Getenv("DOCRAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("DOCRAG_MMR_LAMBDA"); v != "" {
		if l, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && l > 0 && l <= 1 {
			c.Retrieval.Lambda = l
		}
	}

	if v := os.Getenv("DOCRAG_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.ChunkSize = n
		}
	}
	// Zero overlap is a valid explicit value here.
	if v := os.Getenv("DOCRAG_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.ChunkOverlap = n
		}
	}

	if v := os.Getenv("DOCRAG_LLM_PROVIDER"); v != "" {
		c.Generation.Provider = v
	}
	if v := os.Getenv("DOCRAG_LLM_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("DOCRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// NormalizedStrategy returns the canonical strategy name.
func (r RetrievalConfig) NormalizedStrategy() string {
	s := strings.ToLower(strings.TrimSpace(r.Strategy))
	if s == StrategyMMR {
		return StrategyDiversity
	}
	return s
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return derrors.New(derrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
	}

	if c.Paths.DocumentRoot == "" {
		return invalid("paths.docs_path must not be empty")
	}
	if c.Paths.IndexLocation == "" {
		return invalid("paths.index_path must not be empty")
	}

	if c.Chunking.ChunkSize <= 0 {
		return invalid("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return invalid("chunking.chunk_overlap must be in [0, %d), got %d",
			c.Chunking.ChunkSize, c.Chunking.ChunkOverlap)
	}

	if c.Index.Workers <= 0 {
		return invalid("index.workers must be positive, got %d", c.Index.Workers)
	}
	if m := strings.ToLower(c.Index.Metric); m != "cos" && m != "l2" {
		return invalid("index.metric must be 'cos' or 'l2', got %s", c.Index.Metric)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case ProviderOllama, ProviderOpenAI, ProviderStatic:
	default:
		return invalid("embeddings.provider must be 'ollama', 'openai' or 'static', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return invalid("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.Dimensions < 0 {
		return invalid("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}

	switch c.Retrieval.NormalizedStrategy() {
	case StrategySimilarity, StrategyDiversity:
	default:
		return invalid("retrieval.strategy must be 'similarity' or 'diversity', got %s", c.Retrieval.Strategy)
	}
	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.Lambda <= 0 || c.Retrieval.Lambda > 1 {
		return invalid("retrieval.lambda must be in (0, 1], got %g", c.Retrieval.Lambda)
	}
	if c.Retrieval.FetchK < 0 {
		return invalid("retrieval.fetch_k must be non-negative, got %d", c.Retrieval.FetchK)
	}

	switch strings.ToLower(c.Generation.Provider) {
	case ProviderOllama, ProviderOpenAI:
	default:
		return invalid("generation.provider must be 'ollama' or 'openai', got %s", c.Generation.Provider)
	}
	if c.Generation.MaxContextChars <= 0 {
		return invalid("generation.max_context_chars must be positive, got %d", c.Generation.MaxContextChars)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
