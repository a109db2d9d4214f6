// Command pdfanod serves the PDF annotation export service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/winsonsd1123/pdfano/ai"
	"github.com/winsonsd1123/pdfano/annotate"
	"github.com/winsonsd1123/pdfano/config"
	"github.com/winsonsd1123/pdfano/fonts"
	"github.com/winsonsd1123/pdfano/observability"
	"github.com/winsonsd1123/pdfano/server"
	"github.com/winsonsd1123/pdfano/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pdfanod:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "pdfano.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	font, err := loadFont(cfg.Font.Path)
	if err != nil {
		return fmt.Errorf("load annotation font: %w", err)
	}

	store := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.Token,
		storage.WithTimeout(cfg.Storage.Timeout),
		storage.WithLogger(logger))

	var suggester server.Suggester
	if cfg.AI.APIKey != "" {
		suggester = ai.NewSuggester(ai.Config{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			BaseURL:     cfg.AI.BaseURL,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, logger)
	} else {
		logger.Warn("no AI api key configured, suggestion endpoint disabled")
	}

	exporter := &annotate.Assembler{Font: font, Logger: logger}

	srv := server.New(cfg.Server, server.Deps{
		Store:     store,
		Exporter:  exporter,
		Suggester: suggester,
		Logger:    logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadFont parses the configured TrueType file, falling back to the bundled
// Go Regular face when no path is set. Failure is fatal: every export embeds
// this font.
func loadFont(path string) (*fonts.Embedded, error) {
	if path == "" {
		return fonts.LoadTrueType("GoRegular", goregular.TTF)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fonts.LoadTrueType(fontName(path), data)
}

func fontName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
