package config

import (
	"github.com/spf13/viper"
)

// Storage holds configuration for the object storage provider.
type Storage struct {
	Provider string `json:"provider" yaml:"provider"` // s3 or filesystem
	ID       string `json:"id" yaml:"id"`             // access key ID
	Secret   string `json:"secret" yaml:"secret"`     // secret access key
	Region   string `json:"region" yaml:"region"`
	Bucket   string `json:"bucket" yaml:"bucket"` // bucket name, or local path for filesystem
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// getStorageConfig reads storage configurations.
func getStorageConfig(v *viper.Viper) *Storage {
	return &Storage{
		Provider: v.GetString("storage.provider"),
		ID:       v.GetString("storage.id"),
		Secret:   v.GetString("storage.secret"),
		Region:   v.GetString("storage.region"),
		Bucket:   v.GetString("storage.bucket"),
		Endpoint: v.GetString("storage.endpoint"),
	}
}
