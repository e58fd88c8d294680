package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/meigma/memo"
)

const (
	envCacheDir = "MEMO_CACHE_DIR"
	envLogLevel = "MEMO_LOG_LEVEL"
)

const (
	flagDir         = "dir"
	flagLogLevel    = "log-level"
	flagVerbose     = "verbose"
	flagCompression = "compression"
)

// Flags are built per command tree; cli flags keep parse state.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagDir,
			Aliases: []string{"d"},
			Usage:   "cache directory",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar(envCacheDir),
			),
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar(envLogLevel),
			),
			Value: "warn",
			Validator: func(value string) error {
				_, err := parseLevel(value)
				return err
			},
		},
		&cli.BoolFlag{
			Name:        flagVerbose,
			Aliases:     []string{"v"},
			Usage:       "shorthand for --log-level=debug",
			HideDefault: true,
		},
	}
}

func compressionFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  flagCompression,
		Usage: "compression for new blobs (zstd, gzip, none)",
		Value: "zstd",
		Validator: func(value string) error {
			_, err := parseCompression(value)
			return err
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "memo",
		Usage: "inspect memo cache directories",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			lsCommand(),
			verifyCommand(),
			benchCommand(),
		},
	}
}

// openCache opens the cache named by --dir with a logger built from the
// global flags.
func openCache(cmd *cli.Command, opts ...memo.Option) (*memo.Cache, error) {
	dir := cmd.String(flagDir)
	if dir == "" {
		return nil, fmt.Errorf("no cache directory: set --%s or %s", flagDir, envCacheDir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	logger, err := newLogger(cmd, os.Stderr)
	if err != nil {
		return nil, err
	}
	return memo.Open(dir, append([]memo.Option{memo.WithLogger(logger)}, opts...)...)
}

func newLogger(cmd *cli.Command, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cmd.String(flagLogLevel))
	if err != nil {
		return nil, err
	}
	if cmd.Bool(flagVerbose) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func parseCompression(name string) (memo.Compression, error) {
	switch strings.ToLower(name) {
	case "zstd":
		return memo.CompressionZstd, nil
	case "gzip":
		return memo.CompressionGzip, nil
	case "none":
		return memo.CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// stdout returns the writer commands print results to.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

var errVerifyFailed = errors.New("cache verification failed")

