package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/felixge/fgprof"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/memo"
	"github.com/meigma/memo/codec"
	"github.com/meigma/memo/progress"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "time cold and warm calls through a cache",
		UsageText: "memo bench [options]",
		Description: "Runs --count synthetic calls twice: once against an empty cache (computing " +
			"and storing every result) and once more (loading every result). Uses --dir when " +
			"set, otherwise a temporary directory that is removed afterwards.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Usage: "distinct calls per phase", Value: 100},
			&cli.StringFlag{Name: "size", Usage: "result size per call", Value: "64KiB"},
			&cli.StringFlag{Name: "pattern", Usage: "result contents (random, text)", Value: "text"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent callers", Value: 1},
			&cli.Int64Flag{Name: "seed", Usage: "random seed", Value: 1},
			compressionFlag(),
			&cli.BoolFlag{Name: "report", Usage: "report each computation's duration on stderr"},
			&cli.StringFlag{Name: "fgprofile", Usage: "write fgprof (wall clock) profile to file"},
			&cli.StringFlag{Name: "cpuprofile", Usage: "write CPU profile to file"},
			&cli.StringFlag{Name: "memprofile", Usage: "write heap profile to file"},
		},
		Action: benchAction,
	}
}

// synthArgs identifies one synthetic call.
type synthArgs struct {
	N       int    `json:"n"`
	Size    int    `json:"size"`
	Pattern string `json:"pattern"`
	Seed    int64  `json:"seed"`
}

// synthesize builds the deterministic result for args.
func synthesize(_ context.Context, args synthArgs) ([]byte, error) {
	rng := rand.New(rand.NewPCG(uint64(args.Seed), uint64(args.N))) //nolint:gosec // reproducible test data
	out := make([]byte, args.Size)
	switch args.Pattern {
	case "random":
		for i := range out {
			out[i] = byte(rng.Uint32())
		}
	case "text":
		const alphabet = "abcdefghijklmnopqrstuvwxyz \n"
		for i := range out {
			out[i] = alphabet[rng.IntN(len(alphabet))]
		}
	default:
		return nil, fmt.Errorf("unknown pattern %q", args.Pattern)
	}
	return out, nil
}

type benchStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

func benchAction(ctx context.Context, cmd *cli.Command) (err error) {
	size, err := humanize.ParseBytes(cmd.String("size"))
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}
	compression, err := parseCompression(cmd.String(flagCompression))
	if err != nil {
		return err
	}
	if cmd.Int("count") <= 0 {
		return errors.New("--count must be positive")
	}

	dir := cmd.String(flagDir)
	if dir == "" {
		tmp, err := os.MkdirTemp("", "memo-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp) //nolint:errcheck // best-effort cleanup
		dir = tmp
	}
	logger, err := newLogger(cmd, os.Stderr)
	if err != nil {
		return err
	}
	c, err := memo.Open(dir, memo.WithLogger(logger), memo.WithCompression(compression))
	if err != nil {
		return err
	}

	fn := synthesize
	if cmd.Bool("report") {
		fn = progress.Wrap(progress.New(progress.WithLogger(logger)), "synthesize", synthesize)
	}

	stop, err := startProfiles(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := stop(); err == nil {
			err = stopErr
		}
	}()

	w := stdout(cmd)
	for _, phase := range []string{"cold", "warm"} {
		stats, err := runBench(ctx, c, fn, cmd, int(size)) //nolint:gosec // bounded by ParseBytes on a flag
		if err != nil {
			return fmt.Errorf("%s phase: %w", phase, err)
		}
		fmt.Fprintf(w, "phase=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
			phase,
			stats.ops,
			stats.bytes,
			stats.elapsed,
			float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
		)
	}
	return writeHeapProfile(cmd.String("memprofile"))
}

func runBench(ctx context.Context, c *memo.Cache, fn func(context.Context, synthArgs) ([]byte, error), cmd *cli.Command, size int) (benchStats, error) {
	count := cmd.Int("count")
	sizes := make([]int, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cmd.Int("workers")))
	start := time.Now()
	for i := range count {
		args := synthArgs{N: i, Size: size, Pattern: cmd.String("pattern"), Seed: cmd.Int64("seed")}
		g.Go(func() error {
			v, err := memo.Call(gctx, c, fn, args, memo.WithCodec[[]byte](codec.Bytes{}))
			sizes[i] = len(v)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return benchStats{}, err
	}

	stats := benchStats{ops: count, elapsed: time.Since(start)}
	for _, n := range sizes {
		stats.bytes += int64(n)
	}
	return stats, nil
}

// startProfiles starts the profilers requested on cmd and returns a function
// that stops them.
func startProfiles(cmd *cli.Command) (func() error, error) {
	var closers []func() error
	stop := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	if path := cmd.String("fgprofile"); path != "" {
		f, err := os.Create(path) //nolint:gosec // user-chosen output path
		if err != nil {
			return nil, err
		}
		stopFG := fgprof.Start(f, fgprof.FormatPprof)
		closers = append(closers, func() error {
			err := stopFG()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			return err
		})
	}

	if path := cmd.String("cpuprofile"); path != "" {
		f, err := os.Create(path) //nolint:gosec // user-chosen output path
		if err != nil {
			_ = stop()
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			_ = stop()
			return nil, err
		}
		closers = append(closers, func() error {
			pprof.StopCPUProfile()
			return f.Close()
		})
	}
	return stop, nil
}

func writeHeapProfile(path string) error {
	if path == "" {
		return nil
	}
	runtime.GC()
	f, err := os.Create(path) //nolint:gosec // user-chosen output path
	if err != nil {
		return err
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
