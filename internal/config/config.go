package config

import (
	"time"

	"github.com/spf13/viper"
)

type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"   // One JSON file per record (default)
	StorageBackendSQLite StorageBackend = "sqlite" // Records table in a SQLite database
)

type ContentBackend string

const (
	ContentBackendFile  ContentBackend = "file"  // Book bytes under the data directory (default)
	ContentBackendMinio ContentBackend = "minio" // Book bytes in a MinIO/S3 bucket
)

type (
	Config struct {
		HTTP
		Global
		Storage
		Content
		Conversation
		Annotations
		Providers
		Secrets
		Tasks
		Grounding
		Audit
	}

	HTTP struct {
		Port                   int32
		Host                   string
		ModelRequestsPerMinute int // Per-client cap on chat and diagram requests, 0 disables
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Storage struct {
		DataDir      string
		Backend      StorageBackend
		DatabasePath string
	}
	Content struct {
		Backend        ContentBackend
		MaxUploadBytes int64
		Minio          Minio
	}
	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}
	Conversation struct {
		WindowSize int // Trailing history messages sent with each question
	}
	Annotations struct {
		FlushDebounce time.Duration
	}
	Providers struct {
		DeepSeekURL       string
		DeepSeekKey       string
		DeepSeekModel     string
		KimiURL           string
		KimiKey           string
		KimiModel         string
		LocalURL          string
		LocalModel        string
		GroundingProvider string // Family used to register book documents
		DefaultModel      string
		RequestTimeout    time.Duration
	}
	Secrets struct {
		EncryptionKey string // Secret used to seal provider keys at rest; generated when empty
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Grounding struct {
		PrefetchEnabled  bool
		PrefetchSchedule string // Cron format: "30 3 * * *" = nightly
	}
	Audit struct {
		Dir           string // Raw model replies that failed extraction
		RetentionDays int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("model_requests_per_minute", 30)
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	// Storage defaults
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("storage_backend", "file")
	v.SetDefault("database_path", DefaultDatabasePath)

	// Content store defaults
	v.SetDefault("content_backend", "file")
	v.SetDefault("max_upload_bytes", 50<<20) // 50 MiB
	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "lectern-books")
	v.SetDefault("minio_use_ssl", false)

	// Reading defaults
	v.SetDefault("conversation_window_size", 20)
	v.SetDefault("annotations_flush_debounce", "500ms")

	// Provider defaults
	v.SetDefault("deepseek_url", DefaultDeepSeekURL)
	v.SetDefault("deepseek_api_key", "")
	v.SetDefault("deepseek_model", DefaultDeepSeekModel)
	v.SetDefault("kimi_url", DefaultKimiURL)
	v.SetDefault("kimi_api_key", "")
	v.SetDefault("kimi_model", DefaultKimiModel)
	v.SetDefault("local_model_url", DefaultLocalURL)
	v.SetDefault("local_model", "")
	v.SetDefault("grounding_provider", "kimichat")
	v.SetDefault("default_model", DefaultKimiModel)
	v.SetDefault("providers_request_timeout", "120s")

	v.SetDefault("encryption_key", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Grounding prefetch defaults
	v.SetDefault("grounding_prefetch_enabled", false)
	v.SetDefault("grounding_prefetch_schedule", "30 3 * * *") // Daily at 03:30

	v.SetDefault("audit_dir", "./data/audit")
	v.SetDefault("audit_retention_days", 30)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),

			ModelRequestsPerMinute: v.GetInt("MODEL_REQUESTS_PER_MINUTE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Storage: Storage{
			DataDir:      v.GetString("DATA_DIR"),
			Backend:      StorageBackend(v.GetString("STORAGE_BACKEND")),
			DatabasePath: v.GetString("DATABASE_PATH"),
		},
		Content: Content{
			Backend:        ContentBackend(v.GetString("CONTENT_BACKEND")),
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
			Minio: Minio{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
		},
		Conversation: Conversation{
			WindowSize: v.GetInt("CONVERSATION_WINDOW_SIZE"),
		},
		Annotations: Annotations{
			FlushDebounce: v.GetDuration("ANNOTATIONS_FLUSH_DEBOUNCE"),
		},
		Providers: Providers{
			DeepSeekURL:       v.GetString("DEEPSEEK_URL"),
			DeepSeekKey:       v.GetString("DEEPSEEK_API_KEY"),
			DeepSeekModel:     v.GetString("DEEPSEEK_MODEL"),
			KimiURL:           v.GetString("KIMI_URL"),
			KimiKey:           v.GetString("KIMI_API_KEY"),
			KimiModel:         v.GetString("KIMI_MODEL"),
			LocalURL:          v.GetString("LOCAL_MODEL_URL"),
			LocalModel:        v.GetString("LOCAL_MODEL"),
			GroundingProvider: v.GetString("GROUNDING_PROVIDER"),
			DefaultModel:      v.GetString("DEFAULT_MODEL"),
			RequestTimeout:    v.GetDuration("PROVIDERS_REQUEST_TIMEOUT"),
		},
		Secrets: Secrets{
			EncryptionKey: v.GetString("ENCRYPTION_KEY"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Grounding: Grounding{
			PrefetchEnabled:  v.GetBool("GROUNDING_PREFETCH_ENABLED"),
			PrefetchSchedule: v.GetString("GROUNDING_PREFETCH_SCHEDULE"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
