package config

import (
	"fmt"
	"os"
	"time"

	"SpyCanvas/internal/game"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`      // 服务器配置
	Database    DatabaseConfig    `mapstructure:"database"`    // PostgreSQL配置
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"` // 匹配调度配置
	Game        GameConfig        `mapstructure:"game"`        // 对局规则
	Rating      RatingConfig      `mapstructure:"rating"`      // 积分结算配置
	Auth        AuthConfig        `mapstructure:"auth"`        // 认证配置
	Realtime    RealtimeConfig    `mapstructure:"realtime"`    // 外部实时推送配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port  int    `mapstructure:"port"`  // 服务端口
	Mode  string `mapstructure:"mode"`  // Gin运行模式：debug/release/test
	Pprof bool   `mapstructure:"pprof"` // 是否注册pprof
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// MatchmakingConfig 匹配调度配置
type MatchmakingConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"` // 进程内匹配间隔，0 表示只靠 cron 触发
	Tolerance    int           `mapstructure:"tolerance"`     // 组内积分与均值的最大偏差
	CronSecret   string        `mapstructure:"cron_secret"`   // cron 接口 Bearer 密钥
}

// GameConfig 对局规则
type GameConfig struct {
	RoundsToPlay   int `mapstructure:"rounds_to_play"`   // 总回合数
	HalftimeRound  int `mapstructure:"halftime_round"`   // 进入该回合前中场换边
	VotesToFinal   int `mapstructure:"votes_to_final"`   // 提案定为暗号所需票数
	MaxKeyLength   int `mapstructure:"max_key_length"`   // 暗号最大长度
	MaxGuessLength int `mapstructure:"max_guess_length"` // 猜测最大长度
}

// RatingConfig 积分结算配置
type RatingConfig struct {
	Delta         int           `mapstructure:"delta"`          // 胜负加减分
	RetryInterval time.Duration `mapstructure:"retry_interval"` // 未结算对局重试间隔
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // HS256 签名密钥（由外部身份服务签发）
}

// RealtimeConfig 外部实时推送服务配置，BaseURL 为空时只用进程内 websocket
type RealtimeConfig struct {
	BaseURL string `mapstructure:"base_url"` // 推送服务地址
	APIKey  string `mapstructure:"api_key"`  // 推送服务密钥
	Timeout int    `mapstructure:"timeout"`  // 请求超时（秒）
	Proxy   string `mapstructure:"proxy"`    // 代理地址
}

// LoadConfig 加载配置文件（默认 config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig(file string) (*Config, error) {
	// 1. 加载 .env（若存在）
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	// 4. 校验对局规则
	if err := cfg.Rules().Validate(); err != nil {
		return nil, fmt.Errorf("对局规则配置无效: %w", err)
	}
	return &cfg, nil
}

// Default 返回全部默认值的配置（测试和无配置文件场景使用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("matchmaking.tick_interval", 0)
	v.SetDefault("matchmaking.tolerance", 100)
	v.SetDefault("game.rounds_to_play", 4)
	v.SetDefault("game.halftime_round", 3)
	v.SetDefault("game.votes_to_final", 2)
	v.SetDefault("game.max_key_length", 20)
	v.SetDefault("game.max_guess_length", 50)
	v.SetDefault("rating.delta", 25)
	v.SetDefault("rating.retry_interval", 30*time.Second)
	v.SetDefault("realtime.timeout", 5)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Matchmaking.CronSecret = v
	}
	if v := os.Getenv("REALTIME_API_KEY"); v != "" {
		cfg.Realtime.APIKey = v
	}
	if v := os.Getenv("REALTIME_PROXY"); v != "" {
		cfg.Realtime.Proxy = v
	}
}

// Rules 由配置构建对局规则
func (c *Config) Rules() game.Rules {
	r := game.DefaultRules()
	if c.Game.RoundsToPlay > 0 {
		r.RoundsToPlay = c.Game.RoundsToPlay
	}
	if c.Game.HalftimeRound > 0 {
		r.HalftimeRound = c.Game.HalftimeRound
	}
	if c.Game.VotesToFinal > 0 {
		r.VotesToFinal = c.Game.VotesToFinal
	}
	if c.Game.MaxKeyLength > 0 {
		r.MaxKeyLength = c.Game.MaxKeyLength
	}
	if c.Game.MaxGuessLength > 0 {
		r.MaxGuessLength = c.Game.MaxGuessLength
	}
	if c.Rating.Delta > 0 {
		r.RatingDelta = c.Rating.Delta
	}
	if c.Matchmaking.Tolerance > 0 {
		r.Tolerance = c.Matchmaking.Tolerance
	}
	return r
}
