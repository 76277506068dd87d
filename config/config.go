package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Topic    TopicConfig    `mapstructure:"topic"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"`
	CORS           CORSConfig    `mapstructure:"cors"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`   // 普通 JSON 请求体上限
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"` // 文档/头像上传上限
	RateLimit      int           `mapstructure:"rate_limit"`       // 每个窗口内的请求数
	RateWindow     time.Duration `mapstructure:"rate_window"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（Token 黑名单、限流、查询缓存）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证与账号策略
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl"`
	DefaultPassword   string        `mapstructure:"default_password"`   // 重置密码使用的固定默认密码
	AdminPassword     string        `mapstructure:"admin_password"`     // 新建 ADMIN 账号初始密码
	AssistantPassword string        `mapstructure:"assistant_password"` // 新建 ASSISTANT 账号初始密码
	MailDomain        string        `mapstructure:"mail_domain"`        // 无邮箱账号的默认邮箱域名
}

// TopicConfig 选题业务规则
type TopicConfig struct {
	BudgetMin  int64  `mapstructure:"budget_min"`
	BudgetMax  int64  `mapstructure:"budget_max"`
	MaxWords   int    `mapstructure:"max_words"`   // 目标/内容字段的最大词数
	CodePrefix string `mapstructure:"code_prefix"` // 立项编号前缀，如 NCKH
}

// StorageConfig 文档与头像的对象存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local | minio | s3
	LocalPath string `mapstructure:"local_path"`
	PublicURL string `mapstructure:"public_url"` // 对外访问前缀，为空时按后端默认规则拼接
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`
}

// MailConfig 邮件 HTTP API 配置
type MailConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIURL      string        `mapstructure:"api_url"`
	APIKey      string        `mapstructure:"api_key"`
	SenderEmail string        `mapstructure:"sender_email"`
	SenderName  string        `mapstructure:"sender_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"` // 为空时仅输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TracingConfig OpenTelemetry 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"` // OTLP/HTTP host:port
}

// CacheConfig 查询缓存配置
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", "1m")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "researchhub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "researchhub")
	v.SetDefault("auth.access_token_ttl", "24h")
	v.SetDefault("auth.default_password", "Researchhub@123")
	v.SetDefault("auth.admin_password", "Admin123@HR!")
	v.SetDefault("auth.assistant_password", "Assistant123@HR!")
	v.SetDefault("auth.mail_domain", "husc.edu.vn")

	v.SetDefault("topic.budget_min", 7000000)
	v.SetDefault("topic.budget_max", 10000000)
	v.SetDefault("topic.max_words", 100)
	v.SetDefault("topic.code_prefix", "NCKH")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "researchhub")
	v.SetDefault("storage.path_style", true)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.api_url", "https://api.brevo.com/v3/smtp/email")
	v.SetDefault("mail.sender_name", "ResearchHub")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "researchhub-backend")
	v.SetDefault("tracing.endpoint", "localhost:4318")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "2m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("RHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Topic.BudgetMin <= 0 || c.Topic.BudgetMax < c.Topic.BudgetMin {
		return fmt.Errorf("配置校验失败: topic.budget_min/budget_max 区间无效")
	}
	switch c.Storage.Type {
	case "local", "minio", "s3":
	default:
		return fmt.Errorf("配置校验失败: 不支持的 storage.type %q", c.Storage.Type)
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		return fmt.Errorf("配置校验失败: 启用邮件时 mail.api_key 不能为空")
	}
	return nil
}
