// modeltool is a CLI utility for working with AMF and 3MF model files.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/fabworks/modelio/internal/config"
	"github.com/fabworks/modelio/internal/logger"
	"github.com/fabworks/modelio/pkg/formats"
	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/model"
	"go.uber.org/zap"
)

func main() {
	// Global flags come before the command: modeltool [-debug] <command> ...
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "info":
		cmdInfo(args)
	case "convert", "c":
		cmdConvert(args)
	case "repair":
		cmdRepair(args)
	case "duplicate", "dup":
		cmdDuplicate(args, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`modeltool - AMF/3MF model file utility

Usage:
  modeltool <command> [options]

Commands:
  info <file>                      Show model information
  convert <in> <out>               Convert between AMF and 3MF
  repair <in> <out>                Repair meshes and rewrite the file
  duplicate <n> <in> <out>         Duplicate instances n-fold on the bed

Examples:
  modeltool info part.3mf
  modeltool convert part.amf part.3mf
  modeltool duplicate 4 part.3mf plate.3mf`)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modeltool info <file>")
		os.Exit(1)
	}

	m := mustRead(args[0])

	fmt.Printf("File:      %s\n", args[0])
	fmt.Printf("Objects:   %d\n", len(m.Objects))
	fmt.Printf("Materials: %d\n", len(m.Materials))
	for i, o := range m.Objects {
		bb := o.BoundingBox()
		size := bb.Size()
		fmt.Printf("  object %d %q: %d volumes, %d instances, %d facets, %.1f x %.1f x %.1f mm\n",
			i, o.Name, len(o.Volumes), len(o.Instances), o.FacetsCount(),
			size.X, size.Y, size.Z)
	}
	if len(m.Metadata) > 0 {
		keys := make([]string, 0, len(m.Metadata))
		for k := range m.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Metadata:")
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, m.Metadata[k])
		}
	}
}

func cmdConvert(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: modeltool convert <in> <out>")
		os.Exit(1)
	}

	m := mustRead(args[0])
	m.AddDefaultInstances()
	mustWrite(m, args[1])
	logger.Info("converted", zap.String("from", args[0]), zap.String("to", args[1]))
}

func cmdRepair(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: modeltool repair <in> <out>")
		os.Exit(1)
	}

	m := mustRead(args[0])
	m.Repair()
	mustWrite(m, args[1])
	logger.Info("repaired", zap.String("file", args[1]))
}

func cmdDuplicate(args []string, cfg *config.Config) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: modeltool duplicate <n> <in> <out>")
		os.Exit(1)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Fprintf(os.Stderr, "Invalid copy count: %s\n", args[0])
		os.Exit(1)
	}

	m := mustRead(args[1])
	m.AddDefaultInstances()

	var bed geom.BoundingBox2
	bed.Merge(geom.Vec2{})
	bed.Merge(geom.Vec2{X: cfg.Bed.Width, Y: cfg.Bed.Depth})
	if err := m.DuplicateObjects(n, cfg.Arrange.Distance, &bed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	mustWrite(m, args[2])
	logger.Info("duplicated",
		zap.Int("copies", n),
		zap.String("file", args[2]))
}

func mustRead(path string) *model.Model {
	m, err := formats.ReadModel(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return m
}

func mustWrite(m *model.Model, path string) {
	if err := formats.WriteModel(m, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
