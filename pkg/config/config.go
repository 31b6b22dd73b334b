package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整個應用程式的配置
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	UploadDir      string   `mapstructure:"upload_dir"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig 描述消息存儲的數據庫連接。Driver 為 "sqlite" 時只使用 Path。
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChatConfig 控制連接註冊表和每個連接的收發行為
type ChatConfig struct {
	DefaultGroup string        `mapstructure:"default_group"`
	SystemSender string        `mapstructure:"system_sender"`
	TimeLayout   string        `mapstructure:"time_layout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	RateLimit    float64       `mapstructure:"rate_limit"` // 每秒允許的入站消息數，0 表示不限制
	RateBurst    int           `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultChatConfig 返回聊天相關的默認值，測試中也會直接使用
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		DefaultGroup: "general",
		SystemSender: "System",
		TimeLayout:   "15:04",
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 54 * time.Second,
		ReadLimit:    64 * 1024,
		RateBurst:    10,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "group_chat.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "group_chat")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")

	chat := DefaultChatConfig()
	v.SetDefault("chat.default_group", chat.DefaultGroup)
	v.SetDefault("chat.system_sender", chat.SystemSender)
	v.SetDefault("chat.time_layout", chat.TimeLayout)
	v.SetDefault("chat.send_buffer", chat.SendBuffer)
	v.SetDefault("chat.write_timeout", chat.WriteTimeout)
	v.SetDefault("chat.pong_wait", chat.PongWait)
	v.SetDefault("chat.ping_interval", chat.PingInterval)
	v.SetDefault("chat.read_limit", chat.ReadLimit)
	v.SetDefault("chat.rate_limit", chat.RateLimit)
	v.SetDefault("chat.rate_burst", chat.RateBurst)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load 讀取配置。path 為空時在 ./pkg/config 和當前目錄中查找 config.yaml，
// 找不到文件時使用默認值。環境變量 CHAT_<SECTION>_<KEY> 會覆蓋文件中的值。
func Load(path string) (*Config, error) {
	// .env 文件是可選的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./pkg/config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 檢查無法用默認值修正的配置錯誤
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.Chat.DefaultGroup) == "" {
		return errors.New("chat.default_group must not be empty")
	}
	if c.Chat.SendBuffer <= 0 {
		return fmt.Errorf("chat.send_buffer must be positive, got %d", c.Chat.SendBuffer)
	}
	if c.Chat.PingInterval >= c.Chat.PongWait {
		return fmt.Errorf("chat.ping_interval (%s) must be shorter than chat.pong_wait (%s)", c.Chat.PingInterval, c.Chat.PongWait)
	}
	return nil
}
