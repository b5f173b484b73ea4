// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the fieldagent service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/agrisense/fieldagent/internal/config"
	"github.com/agrisense/fieldagent/internal/i18n"
	"github.com/agrisense/fieldagent/internal/langstore"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT,
		os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	// Read config
	confRead := false
	confPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	// Read default config
	conf, err := config.New()
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	// If config file was specified, read it
	if *confPath != "" {
		file := filepath.Base(*confPath)
		path := filepath.Dir(*confPath)
		conf, err = config.NewFromFile(path, file)
		if err != nil {
			log.Error("failed to load config from file", logger.Err(err))
			os.Exit(1)
		}
		confRead = true
	}

	// Check if we have a config file in the default location
	if path, file := findConfigFile(); !confRead && (path != "" && file != "") {
		conf, err = config.NewFromFile(path, file)
		if err != nil {
			log.Error("failed to load config from file", logger.Err(err))
			os.Exit(1)
		}
	}

	log = logger.New(conf.LogLevel)

	// A persisted language preference takes precedence over the configured locale
	langs := langstore.NewFileStore(conf.LanguageFile)
	loc := conf.Locale
	if stored, err := langs.Load(); err == nil {
		loc = stored
	} else if !errors.Is(err, langstore.ErrNotFound) {
		log.Warn("failed to load language preference", logger.Err(err))
	}

	t, tag, err := i18n.New(loc)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(conf, log, t, tag, langs)
	if err != nil {
		log.Error("failed to initialize fieldagent service", logger.Err(err))
		os.Exit(1)
	}

	// Start the service loop
	log.Info(t.Get("starting fieldagent service"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error(t.Get("failed to start fieldagent service"), logger.Err(err))
	}
	log.Info(t.Get("shutting down fieldagent service"))
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "fieldagent", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
