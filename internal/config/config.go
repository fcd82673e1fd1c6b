package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI           string
	Database      string
	ProbeInterval time.Duration
}

type FileStoreConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	AdminEmail  string
	SendTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type OTPConfig struct {
	CodeTTL           time.Duration
	MaxVerifyAttempts int
	MaxResends        int
	ResendWindow      time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Mongo            MongoConfig
	FileStore        FileStoreConfig
	Redis            RedisConfig
	Storage          StorageConfig
	SMTP             SMTPConfig
	Security         SecurityConfig
	OTP              OTPConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("IMPACTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("security.jwtsecret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "impactflow")
	v.SetDefault("mongo.probeinterval", "3s")

	v.SetDefault("filestore.path", "data/db.json")

	// Keys with no meaningful default still need registering so values that
	// arrive only through the environment survive Unmarshal.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "impactflow-profile-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.adminemail", "")
	v.SetDefault("smtp.sendtimeout", "10s")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.tokenttl", "24h")

	v.SetDefault("allowcorsorigins", []string{})

	v.SetDefault("otp.codettl", "10m")
	v.SetDefault("otp.maxverifyattempts", 5)
	v.SetDefault("otp.maxresends", 3)
	v.SetDefault("otp.resendwindow", "10m")
}
