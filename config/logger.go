package config

import (
	lc "github.com/medialens/medialens/logging/logger"
	"github.com/spf13/viper"
)

// Logger represents the logger configuration.
type Logger = lc.Config

// getLoggerConfig reads logger configurations.
func getLoggerConfig(v *viper.Viper) *Logger {
	return &Logger{
		Level:      v.GetInt("logger.level"),
		Format:     v.GetString("logger.format"),
		Output:     v.GetString("logger.output"),
		OutputFile: v.GetString("logger.output_file"),
	}
}
