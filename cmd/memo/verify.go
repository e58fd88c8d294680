package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "read every indexed blob back and report damage",
		UsageText: "memo --dir DIR verify [options]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "concurrent blob readers",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "treat indexed entries without a blob as failures",
			},
		},
		Action: verifyAction,
	}
}

func verifyAction(ctx context.Context, cmd *cli.Command) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	statuses, err := c.Verify(ctx, cmd.Int("workers"))
	if err != nil {
		return err
	}

	w := stdout(cmd)
	var ok, missing, corrupt int
	var total uint64
	for _, s := range statuses {
		switch {
		case s.OK():
			ok++
			total += uint64(s.Size) //nolint:gosec // payload sizes are non-negative
		case s.Missing():
			missing++
			if cmd.Bool("strict") {
				fmt.Fprintf(w, "%s: missing\n", s.Filename)
			}
		default:
			corrupt++
			fmt.Fprintf(w, "%s: %v\n", s.Filename, s.Err)
		}
	}
	fmt.Fprintf(w, "%d entries: %d ok (%s), %d missing, %d corrupt\n",
		len(statuses), ok, humanize.IBytes(total), missing, corrupt)

	if corrupt > 0 || (cmd.Bool("strict") && missing > 0) {
		return errVerifyFailed
	}
	return nil
}
