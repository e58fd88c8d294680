// Command memo inspects and exercises memo cache directories.
//
// Usage:
//
//	memo --dir DIR ls [--full]
//	memo --dir DIR verify [--workers N]
//	memo bench [--count N] [--size BYTES] [--fgprofile FILE]
//
// The cache directory may also be set with MEMO_CACHE_DIR and the log level
// with MEMO_LOG_LEVEL.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "memo:", err)
		return 1
	}
	return 0
}
