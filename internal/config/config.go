package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		Port     string `mapstructure:"port"`
		BaseURL  string `mapstructure:"base_url"`
		FrontURL string `mapstructure:"front_url"`
	} `mapstructure:"app"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
	} `mapstructure:"kafka"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		TokenLifespan time.Duration `mapstructure:"token_lifespan"`
	} `mapstructure:"auth"`
	Cloudinary struct {
		CloudName string `mapstructure:"cloud_name"`
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	} `mapstructure:"cloudinary"`
	Jaeger struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"jaeger"`
	Pinning struct {
		Driver        string        `mapstructure:"driver"`
		APIURL        string        `mapstructure:"api_url"`
		APIKey        string        `mapstructure:"api_key"`
		APISecret     string        `mapstructure:"api_secret"`
		UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	} `mapstructure:"pinning"`
	Minio struct {
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		Bucket          string `mapstructure:"bucket"`
		UseSSL          bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
	Gateway struct {
		URLs           []string      `mapstructure:"urls"`
		AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	} `mapstructure:"gateway"`
	Chain struct {
		RPCURL          string        `mapstructure:"rpc_url"`
		PrivateKey      string        `mapstructure:"private_key"`
		ProfileRegistry string        `mapstructure:"profile_registry"`
		ProjectRegistry string        `mapstructure:"project_registry"`
		ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	} `mapstructure:"chain"`
	Cache struct {
		Driver string        `mapstructure:"driver"`
		TTL    time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
	Media struct {
		MaxBytes int64 `mapstructure:"max_bytes"`
	} `mapstructure:"media"`
	Resolve struct {
		BatchConcurrency int `mapstructure:"batch_concurrency"`
		FeedFirstPage    int `mapstructure:"feed_first_page"`
		FeedNextPage     int `mapstructure:"feed_next_page"`
	} `mapstructure:"resolve"`
	Cleanup struct {
		GracePeriod   time.Duration `mapstructure:"grace_period"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"cleanup"`
	RateLimit struct {
		RequestsPerMinute int `mapstructure:"requests_per_minute"`
		Burst             int `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
}

// LoadConfig reads .env, then config.yaml from the given paths (default
// "."), then environment overrides.
func LoadConfig(paths ...string) (cfg Config, err error) {
	v := viper.New()

	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, use default.")
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err = v.ReadInConfig(); err != nil {
		log.Printf("note: config.yaml not found, read .env only. Error: %v", err)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.port", "APP_PORT")
	v.BindEnv("db.dsn", "DB_DSN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.token_lifespan", "TOKEN_LIFESPAN")

	v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")

	v.BindEnv("jaeger.otlp_endpoint", "OTLP_ENDPOINT")

	v.BindEnv("pinning.driver", "PINNING_DRIVER")
	v.BindEnv("pinning.api_key", "PINATA_API_KEY")
	v.BindEnv("pinning.api_secret", "PINATA_API_SECRET")
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key_id", "MINIO_ACCESS_KEY_ID")
	v.BindEnv("minio.secret_access_key", "MINIO_SECRET_ACCESS_KEY")

	v.BindEnv("chain.rpc_url", "CHAIN_RPC_URL")
	v.BindEnv("chain.private_key", "CHAIN_PRIVATE_KEY")
	v.BindEnv("chain.profile_registry", "PROFILE_REGISTRY_ADDRESS")
	v.BindEnv("chain.project_registry", "PROJECT_REGISTRY_ADDRESS")

	v.BindEnv("cache.driver", "CACHE_DRIVER")

	err = v.Unmarshal(&cfg)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.base_url", "http://localhost:8080/api")
	v.SetDefault("app.front_url", "http://localhost:3000")
	v.SetDefault("auth.token_lifespan", 24*time.Hour)
	v.SetDefault("kafka.group_id", "pin-cleanup-group")

	v.SetDefault("pinning.driver", "pinata")
	v.SetDefault("pinning.api_url", "https://api.pinata.cloud")
	v.SetDefault("minio.bucket", "openforge-dev-ipfs")

	v.SetDefault("gateway.urls", []string{
		"https://w3s.link/ipfs/",
		"https://ipfs.io/ipfs/",
		"https://cloudflare-ipfs.com/ipfs/",
		"https://dweb.link/ipfs/",
		"https://gateway.pinata.cloud/ipfs/",
	})
	v.SetDefault("gateway.attempt_timeout", 5*time.Second)
	v.SetDefault("chain.confirm_timeout", 0)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("media.max_bytes", 5*1024*1024)

	v.SetDefault("resolve.batch_concurrency", 8)
	v.SetDefault("resolve.feed_first_page", 8)
	v.SetDefault("resolve.feed_next_page", 4)

	v.SetDefault("cleanup.grace_period", 24*time.Hour)
	v.SetDefault("cleanup.sweep_interval", 30*time.Minute)

	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 30)
}
