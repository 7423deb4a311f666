package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Pipeline represents the dispatch pipeline configuration.
type Pipeline struct {
	Capabilities []*CapabilityConfig
	FFmpegPath   string
	FFprobePath  string
}

// CapabilityConfig describes one analysis capability: where its work orders
// go and how inputs are shaped for it.
type CapabilityConfig struct {
	Name      string `json:"name" yaml:"name"`
	Queue     string `json:"queue" yaml:"queue"`
	Inputs    string `json:"inputs" yaml:"inputs"` // frames or media
	Languages bool   `json:"languages" yaml:"languages"`
	DependsOn string `json:"depends_on" yaml:"depends_on"`
}

// getPipelineConfig reads pipeline configurations.
func getPipelineConfig(v *viper.Viper) *Pipeline {
	return &Pipeline{
		Capabilities: getCapabilityConfigs(v),
		FFmpegPath:   v.GetString("pipeline.ffmpeg_path"),
		FFprobePath:  v.GetString("pipeline.ffprobe_path"),
	}
}

// getCapabilityConfigs reads capability table overrides.
func getCapabilityConfigs(v *viper.Viper) []*CapabilityConfig {
	var caps []*CapabilityConfig

	capsConfig := v.Get("pipeline.capabilities")
	if capsConfig == nil {
		return caps
	}

	capsInterface, ok := capsConfig.([]any)
	if !ok {
		fmt.Println("Invalid pipeline capabilities configuration format")
		return caps
	}

	for i := 0; i < len(capsInterface); i++ {
		caps = append(caps, &CapabilityConfig{
			Name:      v.GetString(fmt.Sprintf("pipeline.capabilities.%d.name", i)),
			Queue:     v.GetString(fmt.Sprintf("pipeline.capabilities.%d.queue", i)),
			Inputs:    v.GetString(fmt.Sprintf("pipeline.capabilities.%d.inputs", i)),
			Languages: v.GetBool(fmt.Sprintf("pipeline.capabilities.%d.languages", i)),
			DependsOn: v.GetString(fmt.Sprintf("pipeline.capabilities.%d.depends_on", i)),
		})
	}

	return caps
}
