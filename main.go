// rigrun web - A minimal web front-end for local LLM chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigrun-web/internal/config"
	"github.com/jeranaias/rigrun-web/internal/llm"
	"github.com/jeranaias/rigrun-web/internal/render"
	"github.com/jeranaias/rigrun-web/internal/server"
	"github.com/jeranaias/rigrun-web/internal/session"
	"github.com/jeranaias/rigrun-web/internal/storage"
	"github.com/jeranaias/rigrun-web/internal/turn"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 10 * time.Second

func main() {
	var (
		host       = flag.String("host", "", "listen address (overrides config)")
		port       = flag.Int("port", 0, "listen port (overrides config)")
		configPath = flag.String("config", "", "path to config file")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("rigrun-web %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*host, *port, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(host string, port int, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Chat.Dir, cfg.Chat.SystemPrompt)
	if err != nil {
		return fmt.Errorf("opening chat store: %w", err)
	}
	store.TitleLength = cfg.Chat.TitleLength

	providerDefaults := llm.ProviderConfig{
		Model:   cfg.Provider.Model,
		APIBase: cfg.Provider.APIBase,
		APIKey:  cfg.Provider.APIKey,
	}

	renderer := render.New()
	sessions := session.NewManager([]byte(cfg.Session.Key), providerDefaults)
	turns := turn.NewController(store, renderer, llm.NewClient())
	srv := server.NewServer(cfg.Server.Host, cfg.Server.Port, store, sessions, renderer, turns)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Reload provider defaults when the config file changes on disk.
	// Sessions that customized their provider keep their own settings.
	if watchPath := configFilePath(configPath); watchPath != "" {
		watcher, werr := config.NewWatcher(watchPath, func(next *config.Config) {
			sessions.SetDefaults(llm.ProviderConfig{
				Model:   next.Provider.Model,
				APIBase: next.Provider.APIBase,
				APIKey:  next.Provider.APIKey,
			})
		})
		if werr != nil {
			log.Printf("CONFIG_WATCH_DISABLED | path=%s error=%v", watchPath, werr)
		} else {
			g.Go(func() error {
				return watcher.Run(ctx)
			})
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig reads the config from an explicit path or the default location.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// configFilePath resolves the file the config watcher should follow.
// Returns "" when no config location can be determined.
func configFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return path
}
