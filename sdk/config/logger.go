package config

import "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"

// Logger 日志配置
type Logger struct {
	Path        string `mapstructure:"path"`   // 日志文件路径
	Level       string `mapstructure:"level"`  // 日志级别
	Stdout      bool   `mapstructure:"stdout"` // 是否输出到标准控制台
	FileOutput  bool   `mapstructure:"fileOutput"`
	MaxSize     int    `mapstructure:"maxSize"`     // 每个日志文件最大多少MB，一般设置50MB
	ErrorMaxAge int    `mapstructure:"errorMaxAge"` // error日志文件保留天数，一般设置14天
	InfoMaxAge  int    `mapstructure:"infoMaxAge"`  // info日志文件保留天数，一般设置3天
	MaxBackups  int    `mapstructure:"maxBackups"`  // 日志文件保留个数，一般设置20个
	Compress    bool   `mapstructure:"compress"`
}

var LoggerConfig = new(Logger)

// ToLogConfig 转换为日志初始化参数
func (l *Logger) ToLogConfig() logger.LogConfig {
	return logger.LogConfig{
		Path:          l.Path,
		Level:         l.Level,
		ConsoleOutput: l.Stdout,
		FileOutput:    l.FileOutput,
		MaxSize:       l.MaxSize,
		ErrorMaxAge:   l.ErrorMaxAge,
		InfoMaxAge:    l.InfoMaxAge,
		MaxBackups:    l.MaxBackups,
		Compress:      l.Compress,
	}
}
