package config

// Database 事件/快照/键值存储的数据库配置
type Database struct {
	Driver string `mapstructure:"driver"` // mysql, sqlite, memory
	Source string `mapstructure:"source"` // DSN
}

var DatabaseConfig = new(Database)
