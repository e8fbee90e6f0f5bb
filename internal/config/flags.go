package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagVersion  = flag.Int("smf-version", 0, "Target SMF version (7, 10 or 11)")
	flagScale    = flag.Float64("scale", 0, "Uniform export scale")
	flagInvertUV = flag.Bool("invert-uv", false, "Flip the V texture coordinate")
	flagFormat   = flag.String("texture-format", "", "Extracted texture format (webp or png)")
	flagOutDir   = flag.String("out", "", "Output directory for extracted files")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagVersion > 0 {
		cfg.Export.Version = *flagVersion
	}
	if *flagScale > 0 {
		cfg.Export.Scale = float32(*flagScale)
	}
	if *flagInvertUV {
		cfg.Export.InvertUV = true
	}
	if *flagFormat != "" {
		cfg.Textures.Format = *flagFormat
	}
	if *flagOutDir != "" {
		cfg.Textures.OutDir = *flagOutDir
	}
}
