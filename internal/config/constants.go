package config

// Default paths for data
const (
	// DefaultDataDir holds record files, book bytes and covers
	DefaultDataDir = "./data"

	// DefaultDatabasePath is the SQLite file used by the sqlite record backend
	DefaultDatabasePath = "./data/lectern.db"
)

// Default provider endpoints and models
const (
	DefaultDeepSeekURL   = "https://api.deepseek.com"
	DefaultDeepSeekModel = "deepseek-chat"
	DefaultKimiURL       = "https://api.moonshot.cn/v1"
	DefaultKimiModel     = "moonshot-v1-32k"
	DefaultLocalURL      = "http://localhost:11434"
)
