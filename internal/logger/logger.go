package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/EgehanKilicarslan/tokenguard/internal/config"
)

func New(cfg *config.Config) *slog.Logger {
	logger := slog.New(newHandler(cfg, output(cfg)))

	slog.SetDefault(logger)

	return logger
}

func newHandler(cfg *config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if strings.ToLower(cfg.AppEnv) == "production" {
		// JSON format
		return slog.NewJSONHandler(w, opts)
	}
	// Human-readable format
	return slog.NewTextHandler(w, opts)
}

// output mirrors stdout into a rotated file when LOG_DIR is configured
func output(cfg *config.Config) io.Writer {
	if cfg.LogDir == "" {
		return os.Stdout
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "tokenguard.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, fileWriter)
}
