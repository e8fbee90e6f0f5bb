// Package config handles tool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Export   ExportConfig  `yaml:"export"`
	Textures TextureConfig `yaml:"textures"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ExportConfig holds SMF export settings.
type ExportConfig struct {
	Version       int     `yaml:"version"`        // Target format version: 7, 10 or 11
	Scale         float32 `yaml:"scale"`          // Uniform scale applied on export
	InvertUV      bool    `yaml:"invert_uv"`      // Flip the V texture coordinate
	MaxInfluences int     `yaml:"max_influences"` // Bone influences per vertex, 1..4
	Textures      bool    `yaml:"textures"`       // Embed texture pixel data
	Subdivisions  int     `yaml:"subdivisions"`   // Fixed-interval animation samples
}

// TextureConfig holds texture extraction settings.
type TextureConfig struct {
	Format string `yaml:"format"` // Output format for extracted textures: webp or png
	OutDir string `yaml:"out_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Version:       11,
			Scale:         1,
			InvertUV:      false,
			MaxInfluences: 4,
			Textures:      true,
			Subdivisions:  0,
		},
		Textures: TextureConfig{
			Format: "webp",
			OutDir: ".",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
