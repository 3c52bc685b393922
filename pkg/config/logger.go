package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// SetupLogger 按 log.level / log.format 构建 slog 并设为默认 Logger
// 日志写到 w (通常是 stderr)，stdout 留给面向用户的输出
func SetupLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(viper.GetString("log.format")) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log.format: %s", viper.GetString("log.format"))
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}
