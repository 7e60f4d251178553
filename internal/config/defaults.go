package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Pipeline.SimilarityThreshold == 0 {
		cfg.Pipeline.SimilarityThreshold = 0.8
	}
	if cfg.Pipeline.MaxSources == 0 {
		cfg.Pipeline.MaxSources = 5
	}
	if cfg.Pipeline.RunTimeoutSeconds == 0 {
		cfg.Pipeline.RunTimeoutSeconds = 120
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "sqlite"
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = "localhost:6379"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "KOTAE_LLM_API_KEY"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "KOTAE_LLM_API_KEY"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if len(cfg.Retrieval.Backends) == 0 {
		cfg.Retrieval.Backends = []string{"duckduckgo", "bing"}
	}
	if cfg.Retrieval.BackendTimeoutSeconds == 0 {
		cfg.Retrieval.BackendTimeoutSeconds = 30
	}
	if cfg.Retrieval.FetchTimeoutSeconds == 0 {
		cfg.Retrieval.FetchTimeoutSeconds = 10
	}
	if cfg.Retrieval.FetchConcurrency == 0 {
		cfg.Retrieval.FetchConcurrency = 4
	}
	if cfg.Retrieval.UserAgent == "" {
		cfg.Retrieval.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if cfg.Retrieval.BingEndpoint == "" {
		cfg.Retrieval.BingEndpoint = "https://api.bing.microsoft.com/v7.0/search"
	}
	if cfg.Retrieval.BingAPIKeyEnv == "" {
		cfg.Retrieval.BingAPIKeyEnv = "KOTAE_BING_API_KEY"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/answers.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotae/data/indices/queries.vec"
	}
}
