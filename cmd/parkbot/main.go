package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"parkbot/internal/bot"
	"parkbot/internal/parking"
	"parkbot/internal/scanning"
	"parkbot/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	fs := ff.NewFlagSet("parkbot")
	var (
		token       = fs.StringLong("token", "", "Telegram bot token (or set PARKBOT_TOKEN env var)")
		dbPath      = fs.StringLong("db", "parkbot.db", "SQLite database file path")
		offsetsPath = fs.StringLong("offsets", "parkbot-offsets.db", "Update offset store file path")
		archivePath = fs.StringLong("archive", "./tickets", "Ticket image archive directory ('' disables archiving)")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ocrURL      = fs.StringLong("ocr-url", "http://localhost:11434", "Ollama API base URL for OCR")
		ocrModel    = fs.StringLong("ocr-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PARKBOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *token == "" {
		slog.Error("Telegram bot token is required. Set --token flag or PARKBOT_TOKEN environment variable")
		os.Exit(1)
	}

	slog.Info("Initializing database...", "path", *dbPath)
	db, err := parking.NewSQLiteDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	offsets, err := telegram.NewOffsetStore(*offsetsPath)
	if err != nil {
		slog.Error("Failed to initialize offset store", "error", err)
		os.Exit(1)
	}
	defer offsets.Close()

	slog.Info("Initializing OCR recognizer...", "url", *ocrURL, "model", *ocrModel)
	recognizer, err := scanning.NewOllamaOCR(*ocrURL, *ocrModel)
	if err != nil {
		slog.Error("Failed to initialize OCR recognizer", "error", err)
		os.Exit(1)
	}
	defer recognizer.Close()

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		os.Exit(1)
	}
	slog.Info("Initializing extractor...", "model", *geminiModel)
	extractor, err := scanning.NewGeminiExtractor(apiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	var archive bot.Archive
	if *archivePath != "" {
		archive, err = bot.NewLocalArchive(*archivePath)
		if err != nil {
			slog.Error("Failed to initialize ticket archive", "error", err)
			os.Exit(1)
		}
	}

	client, err := telegram.NewClient(*token)
	if err != nil {
		slog.Error("Failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}

	service := parking.NewService(db)
	b := bot.New(client, offsets, db, service, recognizer, extractor, archive)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutting down...")
		cancel()
	}()

	slog.Info("Starting bot", "version", version)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("Bot stopped", "error", err)
		os.Exit(1)
	}
}
