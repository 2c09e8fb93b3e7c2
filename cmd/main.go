package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/adapters"
	"github.com/brettbedarf/pseudofs/config"
	"github.com/brettbedarf/pseudofs/directory"
	"github.com/brettbedarf/pseudofs/file"
	"github.com/brettbedarf/pseudofs/internal/util"
	"github.com/brettbedarf/pseudofs/registry"
	"github.com/brettbedarf/pseudofs/requests"
	"github.com/brettbedarf/pseudofs/server"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		nodesDef   string
		umount     bool
		readOnly   bool
	)
	flag.StringVarP(&configPath, "config", "c", "", "Path to config file (.yaml, .yml or .json)")
	flag.StringVarP(&nodesDef, "nodes", "n", "", "Path to nodes def file (.json, .yaml or .yml)")
	flag.BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace).")
	flag.BoolVar(&readOnly, "read-only", false, "Refuse creating, removing and renaming entries through the mount")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] MOUNTPOINT\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logger
	util.InitializeLogger(config.VerboseToLogLevel(verbose))
	logger := util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().Int("verbose", verbose).Str("nodes", nodesDef).Str("mnt", mnt).Msg("pseudofs server initializing")
	// Check if mount point is provided
	if mnt == "" {
		flag.Usage()
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}

	// Config file values, then explicit flags on top
	override := &config.ConfigOverride{}
	if configPath != "" {
		var err error
		if override, err = config.LoadConfigOverrideFile(configPath); err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
	}
	if flag.CommandLine.Changed("verbose") || override.LogLvl == nil {
		override.LogLvl = &verbose
	}
	if flag.CommandLine.Changed("read-only") {
		override.ReadOnly = &readOnly
	}
	cfg := config.NewConfig(override)
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	util.InitializeLogger(cfg.LogLvl)

	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	// Register all built-in adapters
	adapterRegistry := adapters.NewRegistry()
	adapters.RegisterStatic(adapterRegistry)
	adapters.RegisterMemory(adapterRegistry, uint64(cfg.FileCapacity))
	adapters.RegisterHTTP(adapterRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	capacity := uint64(cfg.FileCapacity)
	scope := pseudofs.NewScope(
		pseudofs.WithContext(ctx),
		pseudofs.WithTokenRegistry(registry.NewTokens()),
		pseudofs.WithEntryConstructor(directory.TreeConstructor(
			func(name string, _ pseudofs.OpenFlags, _ uint32) (pseudofs.DirectoryEntry, error) {
				return file.NewReadWrite(nil, capacity), nil
			})),
	)
	defer scope.Shutdown()

	root := directory.NewMutable(directory.WithNotFoundHandler(func(name string) {
		logger.Debug().Str("name", name).Msg("Not found")
	}))

	// Load nodes
	if nodesDef != "" {
		defs, err := requests.LoadFile(nodesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to read nodes file")
		}
		logger.Debug().Str("nodes", nodesDef).Int("count", len(defs)).Msg("Nodes file loaded successfully")

		res, err := requests.Build(root, defs, adapterRegistry)
		if err != nil {
			logger.Error().Err(err).Msg("Some nodes could not be added")
		}
		logger.Info().Int("directories", res.Dirs).Int("files", res.Files).Int("links", res.Links).
			Msg("Added new nodes to filesystem")
	} else {
		logger.Warn().Msg("No nodes file provided")
	}

	// Serve
	srv := server.New(cfg, root, scope)
	if err := srv.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}
	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	<-ctx.Done()
	logger.Info().Msg("Received signal, unmounting filesystem")

	// Unmount the filesystem
	if err := srv.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}
