package config

// Application 应用基本信息
type Application struct {
	Name string `mapstructure:"name"` // 应用名（同时作为总线名，参与主题构造）
	Mode string `mapstructure:"mode"` // dev, test, prod
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

var ApplicationConfig = new(Application)
