// Package main is the entry point for the SMF version converter.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/smf-go/internal/config"
	"github.com/Faultbox/smf-go/internal/logger"
	"github.com/Faultbox/smf-go/pkg/smf"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: smfconv [flags] <input.smf> <output.smf>")
		fmt.Fprintln(os.Stderr, "Flags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	inPath, outPath := flag.Arg(0), flag.Arg(1)
	target := smf.Version(cfg.Export.Version)

	f, err := smf.ParseFile(inPath)
	if err != nil {
		logger.Error("failed to read input", zap.String("path", inPath), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("loaded file",
		zap.String("path", inPath),
		zap.String("version", f.Version.String()),
		zap.Int("models", len(f.Models)),
		zap.Int("nodes", len(f.Nodes)),
		zap.Int("animations", len(f.Animations)))

	if f.Version == target {
		logger.Warn("input is already the target version", zap.String("version", target.String()))
	}
	f.Version = target

	// The v7 container carries chunks the modern versions dropped; warn when
	// a conversion synthesizes or discards them.
	if target == smf.V7 && len(f.Materials) == 0 {
		for i := range f.Models {
			if name := f.Models[i].MaterialName; name != "" && f.FindMaterial(name) == nil {
				f.Materials = append(f.Materials, smf.Material{Name: name})
			}
		}
		logger.Sugar.Debugf("synthesized %d v7 material entries", len(f.Materials))
	}

	if err := f.EncodeFile(outPath); err != nil {
		logger.Error("failed to write output", zap.String("path", outPath), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("wrote converted file",
		zap.String("path", outPath),
		zap.String("version", target.String()))
}
