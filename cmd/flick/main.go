package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tversen/flick/internal/config"
	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/jellyfin"
	"github.com/tversen/flick/internal/log"
	"github.com/tversen/flick/internal/player"
	"github.com/tversen/flick/internal/profile"
	"github.com/tversen/flick/internal/resolver"
	"github.com/tversen/flick/internal/session"
	"github.com/tversen/flick/internal/store"
	"github.com/tversen/flick/internal/trickplay"
	"github.com/tversen/flick/internal/ui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	var clearCache bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&clearCache, "clear-cache", false, "clear the local cache and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("flick %s\n", Version)
		return
	}

	if err := run(clearCache, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: flick [flags] <item-id> [item-id...]\n\n")
	fmt.Fprintf(os.Stderr, "Plays media server items in an interactive now-playing view.\n\n")
	flag.PrintDefaults()
}

func run(clearCache bool, itemIDs []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if clearCache {
		return config.ClearCache(cfg)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting flick", "version", Version)

	if !cfg.IsConfigured() {
		return fmt.Errorf("server not configured: set server.url and server.token in the config file, or FLICK_SERVER_URL and FLICK_SERVER_TOKEN in the environment")
	}
	if len(itemIDs) == 0 {
		usage()
		return fmt.Errorf("no items to play")
	}

	// Create the server client
	client := jellyfin.NewClient(cfg.Server.URL, cfg.Server.Token, cfg.Server.UserID, cfg.Server.DeviceID, logger)

	// Build the device capability profile
	maxBitrate := cfg.Playback.MaxBitrate
	if maxBitrate == 0 {
		maxBitrate = cfg.Playback.Quality.Bitrate()
	}
	profiler := profile.NewProfiler(profile.SoftwareDecoderProber(), logger)
	deviceProfile := profiler.BuildProfile(profile.Options{
		ForceHDR:         cfg.Playback.ForceHDR,
		ForceDolbyVision: cfg.Playback.ForceDolbyVision,
		MaxAudioChannels: cfg.Playback.MaxAudioChannels,
		DisplayWidth:     cfg.Playback.DisplayWidth,
		MaxBitrate:       maxBitrate,
	})

	// Local cache: trickplay sprites and resume positions
	playbackStore, err := store.NewPlaybackStore(cfg.Cache.Dir, cfg.Server.URL)
	if err != nil {
		logger.Warn("cache unavailable, running memory-only", "error", err)
		playbackStore, err = store.NewPlaybackStore("", cfg.Server.URL)
		if err != nil {
			return fmt.Errorf("failed to create playback store: %w", err)
		}
	}
	defer playbackStore.Close()

	streamResolver := resolver.NewResolver(client, cfg.Server.URL, cfg.Server.Token, logger)
	sprites := trickplay.NewCache(client, playbackStore, logger)

	newPlayer := func(category domain.MediaCategory) domain.Player {
		engine := player.NewMPVEngine(cfg.Player.Command, category, cfg.Player.Args, logger)
		return player.New(category, engine, nil, logger)
	}

	prefs := session.PlaybackPrefs{
		ForceTranscode:   cfg.Playback.ForceTranscode,
		BitrateOverride:  cfg.Playback.MaxBitrate,
		PresetBitrate:    cfg.Playback.Quality.Bitrate(),
		DevicePixelWidth: cfg.Playback.DisplayWidth,
	}

	controllers := make(map[domain.MediaCategory]*session.Controller, 2)
	for _, category := range []domain.MediaCategory{domain.CategoryVideo, domain.CategoryAudio} {
		opts := session.Options{
			Client:    client,
			Resolver:  streamResolver,
			NewPlayer: newPlayer,
			Category:  category,
			Profile:   deviceProfile,
			Prefs:     prefs,
			Store:     playbackStore,
			Logger:    logger,
		}
		if category == domain.CategoryVideo {
			opts.Trickplay = sprites
		}
		controller, err := session.NewController(opts)
		if err != nil {
			return fmt.Errorf("failed to create session controller: %w", err)
		}
		controllers[category] = controller
	}
	manager := session.NewManager(controllers)
	defer manager.StopAll()

	// Fetch the requested items
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	items := make([]domain.MediaItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := client.GetItem(ctx, id)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to fetch item %s: %w", id, err)
		}
		items = append(items, item)
	}
	cancel()

	controller, ok := manager.Controller(items[0].Kind.Category())
	if !ok {
		return fmt.Errorf("no playback surface for %s", items[0].Kind.Category())
	}

	// Run the now-playing view
	model := ui.NewModel(controller, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())

	controller.Subscribe(func(snap session.Snapshot) {
		program.Send(ui.SnapshotMsg(snap))
	})

	go func() {
		playCtx, playCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer playCancel()
		if err := controller.PlayItems(playCtx, items, 0); err != nil {
			logger.Error("playback failed to start", "error", err)
		}
	}()

	if _, err := program.Run(); err != nil {
		logger.Error("UI error", "error", err)
		return fmt.Errorf("UI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
