package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"rewards-controlplane/pkg/hashistack/secretmanager"

	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config       = viper.New()
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "development" // e.g., app/<env>/<service_name>
	configType   = "yaml"
)

type Config struct {
	Platform struct {
		CompanyName    string `mapstructure:"COMPANY_NAME"`
		CompanySlug    string `mapstructure:"COMPANY_SLUG"`
		AdminEmail     string `mapstructure:"ADMIN_EMAIL"`
		AdminPassword  string `mapstructure:"ADMIN_PASSWORD"`
		AdminName      string `mapstructure:"ADMIN_NAME"`
		PublicBaseURL  string `mapstructure:"PUBLIC_BASE_URL"`
		AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	} `mapstructure:"PLATFORM"`
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Log struct {
		Level      string `mapstructure:"LEVEL"`
		FilePath   string `mapstructure:"FILE_PATH"`
		MaxSizeMB  int    `mapstructure:"MAX_SIZE_MB"`
		MaxBackups int    `mapstructure:"MAX_BACKUPS"`
		MaxAgeDays int    `mapstructure:"MAX_AGE_DAYS"`
	} `mapstructure:"LOG"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"` // grpc|http
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Auth struct {
		JWTSecret string        `mapstructure:"JWT_SECRET"`
		Issuer    string        `mapstructure:"ISSUER"`
		TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`
	} `mapstructure:"AUTH"`
	Database struct {
		Type           string        `mapstructure:"TYPE"`
		Host           string        `mapstructure:"HOST"`
		Port           string        `mapstructure:"PORT"`
		DBNAME         string        `mapstructure:"DBNAME"`
		User           string        `mapstructure:"USER"`
		Password       string        `mapstructure:"PASSWORD"`
		SSLMode        string        `mapstructure:"SSLMODE"`
		Timezone       string        `mapstructure:"TIMEZONE"`
		AutoMigrate    bool          `mapstructure:"AUTO_MIGRATE"`
		Metrics        bool          `mapstructure:"METRICS"`
		SlowQuery      time.Duration `mapstructure:"SLOW_QUERY"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
		PublicURL  string `mapstructure:"PUBLIC_URL"`
	} `mapstructure:"MINIO"`
	Consul struct {
		Addr      string `mapstructure:"ADDR"`
		ServiceID string `mapstructure:"SERVICE_ID"`
		Host      string `mapstructure:"HOST"`
	} `mapstructure:"CONSUL"`
	Temporal struct {
		Addr      string `mapstructure:"ADDR"`
		Namespace string `mapstructure:"NAMESPACE"`
		TaskQueue string `mapstructure:"TASK_QUEUE"`
	} `mapstructure:"TEMPORAL"`
	AI struct {
		BaseURL    string        `mapstructure:"BASE_URL"`
		APIKey     string        `mapstructure:"API_KEY"`
		ChatModel  string        `mapstructure:"CHAT_MODEL"`
		ImageModel string        `mapstructure:"IMAGE_MODEL"`
		ImageSize  string        `mapstructure:"IMAGE_SIZE"`
		Timeout    time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"AI"`
	Detection struct {
		StepDelay     time.Duration `mapstructure:"STEP_DELAY"`
		FastStepDelay time.Duration `mapstructure:"FAST_STEP_DELAY"`
		Images        bool          `mapstructure:"IMAGES"`
		StaleAfter    time.Duration `mapstructure:"STALE_AFTER"`
	} `mapstructure:"DETECTION"`
	Scheduler struct {
		Spec   string `mapstructure:"SPEC"`
		Hour   int    `mapstructure:"HOUR"`
		Minute int    `mapstructure:"MINUTE"`
	} `mapstructure:"SCHEDULER"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

type Params struct {
	fx.In
	Secrets *secretmanager.Store `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "rewards-controlplane")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 0)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("AUTH.ISSUER", "rewards-controlplane")
	v.SetDefault("AUTH.TOKEN_TTL", 24*time.Hour)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)
	v.SetDefault("DATABASE.SLOW_QUERY", 200*time.Millisecond)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("TEMPORAL.ADDR", "127.0.0.1:7233")
	v.SetDefault("TEMPORAL.NAMESPACE", "default")
	v.SetDefault("TEMPORAL.TASK_QUEUE", "DETECTION_TASK_QUEUE")
	v.SetDefault("AI.BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI.CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("AI.IMAGE_MODEL", "gpt-image-1")
	v.SetDefault("AI.IMAGE_SIZE", "1024x1024")
	v.SetDefault("AI.TIMEOUT", 60*time.Second)
	v.SetDefault("DETECTION.STEP_DELAY", 2*time.Second)
	v.SetDefault("DETECTION.FAST_STEP_DELAY", time.Second)
	v.SetDefault("DETECTION.IMAGES", true)
	v.SetDefault("DETECTION.STALE_AFTER", 30*time.Minute)
	v.SetDefault("SCHEDULER.HOUR", 1)
	v.SetDefault("SCHEDULER.MINUTE", 0)
	v.SetDefault("MINIO.BUCKET_NAME", "recommendation-images")
	v.SetDefault("LOG.MAX_SIZE_MB", 100)
	v.SetDefault("LOG.MAX_BACKUPS", 7)
	v.SetDefault("LOG.MAX_AGE_DAYS", 14)
}

func LoadConfig(p Params) *Config {
	setDefaults(config)

	config.SetConfigName("config")
	config.SetConfigType(configType)
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("config file not found, using environment")
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Secrets != nil {
		overlaySecrets(&cfg, p.Secrets)
	}

	configHolder.Store(&cfg)
	return &cfg
}

// Current returns the most recently loaded config, refreshed by the remote
// watcher when LoadRemote is in use.
func Current() *Config {
	if v, ok := configHolder.Load().(*Config); ok {
		return v
	}
	return nil
}

// LoadRemote reads config from a remote key/value provider and keeps it
// refreshed in the background.
func LoadRemote(p Params) *Config {
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	setDefaults(config)
	config.SetConfigType(configType)
	if err := config.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		zap.L().Error("failed to add remote config provider", zap.String("backend", backend), zap.Error(err))
		os.Exit(1)
	}

	if err := config.ReadRemoteConfig(); err != nil {
		zap.L().Error("failed to read remote config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	if p.Secrets != nil {
		overlaySecrets(&cfg, p.Secrets)
	}
	configHolder.Store(&cfg)

	go func() {
		for {
			time.Sleep(time.Second * 5)

			if err := config.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var next Config
			if err := config.Unmarshal(&next); err != nil {
				continue
			}
			if p.Secrets != nil {
				overlaySecrets(&next, p.Secrets)
			}
			configHolder.Store(&next)
		}
	}()

	return &cfg
}

// UseRemote reports whether the process was started against a remote config
// provider.
func UseRemote() bool {
	_, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER")
	return ok
}

// SecretReader returns the secret values stored at a path.
type SecretReader interface {
	Read(ctx context.Context, path string) (map[string]string, error)
}

func overlaySecrets(cfg *Config, secrets SecretReader) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zap.L().Info("reading secrets from vault", zap.String("path", cfg.AppEnv))
	values, err := secrets.Read(ctx, cfg.AppEnv)
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		os.Exit(1)
	}
	applySecrets(cfg, values)
}

func applySecrets(cfg *Config, values map[string]string) {
	targets := map[string]*string{
		"database_user":     &cfg.Database.User,
		"database_password": &cfg.Database.Password,
		"redis_password":    &cfg.Redis.Password,
		"jwt_secret":        &cfg.Auth.JWTSecret,
		"ai_api_key":        &cfg.AI.APIKey,
		"flagsmith_api_key": &cfg.Flagsmith.ApiKey,
		"minio_secret_key":  &cfg.Minio.SecretKey,
	}
	for key, dst := range targets {
		if v := values[key]; v != "" {
			*dst = v
		}
	}
}
