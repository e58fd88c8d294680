package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/meigma/memo"
)

// keyWidth is the longest key printed by ls without --full.
const keyWidth = 48

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list indexed calls and their blobs",
		UsageText: "memo --dir DIR ls [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full",
				Usage: "print keys without truncation",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print entries as JSON lines",
			},
		},
		Action: lsAction,
	}
}

// lsRow is one listed entry.
type lsRow struct {
	Filename string `json:"filename"`
	Digest   string `json:"digest"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Missing  bool   `json:"missing,omitempty"`
}

func lsAction(_ context.Context, cmd *cli.Command) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	entries, err := c.Entries()
	if err != nil {
		return err
	}

	rows := make([]lsRow, 0, len(entries))
	for _, e := range entries {
		row := lsRow{Filename: e.Filename, Digest: e.Key.Digest().String(), Key: string(e.Key)}
		size, err := c.BlobSize(e.Filename)
		switch {
		case errors.Is(err, memo.ErrNotFound):
			row.Missing = true
		case err != nil:
			return err
		default:
			row.Size = size
		}
		rows = append(rows, row)
	}

	w := stdout(cmd)
	if cmd.Bool("json") {
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "%s: no entries\n", c.Dir())
		return err
	}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		size := humanize.IBytes(uint64(row.Size)) //nolint:gosec // file sizes are non-negative
		if row.Missing {
			size = "missing"
		}
		key := row.Key
		if !cmd.Bool("full") {
			key = truncate(key, keyWidth)
		}
		cells = append(cells, []string{row.Filename, size, memo.Key(row.Key).Short(), key})
	}

	cellStyle := lipgloss.NewStyle().Align(lipgloss.Left)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col > 0 {
				return cellStyle.PaddingLeft(2)
			}
			return cellStyle
		}).
		Headers("FILE", "SIZE", "DIGEST", "KEY").
		Rows(cells...)
	_, err = fmt.Fprintln(w, t.String())
	return err
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
