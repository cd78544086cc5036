package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"pacman-lan/internal/transport"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MODE_HOST = "host"
	MODE_JOIN = "join"
)

type DatabaseConfig struct {
	// 为空时不保存对局结果
	DSN string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	// 为空时不发送分析事件
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AppConfig struct {
	Mode string `mapstructure:"mode"`
	Name string `mapstructure:"name"`

	// host 模式下为监听地址，join 模式下为主机地址
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// 主机管理接口端口，0 表示不开启
	APIPort int `mapstructure:"api_port"`

	LogLevel string `mapstructure:"log_level"`

	Map        string `mapstructure:"map"`
	GhostSpeed bool   `mapstructure:"ghost_speed"`
	Lives      int    `mapstructure:"lives"`
	Seat       int    `mapstructure:"seat"`
	TickRate   int    `mapstructure:"tick_rate"`

	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

// InitConfig 读取 PACMAN_CONFIG 指定的配置文件，默认为 app_config.json
func InitConfig() *AppConfig {
	path := os.Getenv("PACMAN_CONFIG")
	if path == "" {
		path = "app_config.json"
	}

	c, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}

	cfg = c
	return c
}

// LoadConfig 依次读取默认值、配置文件、.env 与 PACMAN_ 前缀的环境变量，后者覆盖前者。
// 配置文件不存在时只使用默认值与环境变量。
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	v := viper.New()

	v.SetDefault("mode", MODE_HOST)
	v.SetDefault("name", "player")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 7777)
	v.SetDefault("api_port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("map", "maps/level1.txt")
	v.SetDefault("ghost_speed", false)
	v.SetDefault("lives", 3)
	v.SetDefault("seat", 0)
	v.SetDefault("tick_rate", 30)
	v.SetDefault("database.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pacman-events")

	v.SetEnvPrefix("PACMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if config.Mode != MODE_HOST && config.Mode != MODE_JOIN {
		return nil, fmt.Errorf("未知的运行模式: %s", config.Mode)
	}

	// 昵称会原样写进名单，含有协议分隔符会让所有客户端丢弃名单
	if !transport.ValidNickname(config.Name) {
		return nil, fmt.Errorf("昵称无效: %q", config.Name)
	}

	return &config, nil
}
