package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 顶层配置结构
type Config struct {
	Application *Application `mapstructure:"application"`
	Logger      *Logger      `mapstructure:"logger"`
	Database    *Database    `mapstructure:"database"`
	Redis       *Redis       `mapstructure:"redis"`
	EventBus    *EventBus    `mapstructure:"eventBus"`
	CQRS        *CQRS        `mapstructure:"cqrs"`
}

var AppConfig = &Config{
	Application: ApplicationConfig,
	Logger:      LoggerConfig,
	Database:    DatabaseConfig,
	Redis:       RedisConfig,
	EventBus:    EventBusConfig,
	CQRS:        CQRSConfig,
}

// Setup 读取配置文件并映射到AppConfig
func Setup(configYml string) error {
	v := viper.New()
	v.SetConfigFile(configYml)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := v.Unmarshal(AppConfig); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}
