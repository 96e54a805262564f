package config

// Redis 缓存/分布式锁配置
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix 键值存储的键前缀
	KeyPrefix string `mapstructure:"keyPrefix"`
}

var RedisConfig = new(Redis)
