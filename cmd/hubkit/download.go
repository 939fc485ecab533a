package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/internal/logger"
	"github.com/samcharles93/hubkit/pkg/hub"
)

func downloadCmd() *cli.Command {
	var (
		revision string
		include  []string
		exclude  []string
		jobs     int64
		force    bool
		resume   bool
		quiet    bool
	)

	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download a repository snapshot or single files into the cache",
		ArgsUsage: "<repo-id> [file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "revision",
				Aliases:     []string{"r"},
				Usage:       "branch, tag or commit to download",
				Destination: &revision,
			},
			cacheDirFlag(),
			&cli.StringSliceFlag{
				Name:        "include",
				Usage:       "glob of files to include (repeatable)",
				Destination: &include,
			},
			&cli.StringSliceFlag{
				Name:        "exclude",
				Usage:       "glob of files to exclude (repeatable)",
				Destination: &exclude,
			},
			&cli.Int64Flag{
				Name:        "jobs",
				Aliases:     []string{"j"},
				Usage:       "parallel downloads",
				Value:       4,
				Destination: &jobs,
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "redownload even when the file is cached",
				Destination: &force,
			},
			&cli.BoolFlag{
				Name:        "resume",
				Usage:       "resume interrupted downloads",
				Value:       true,
				Destination: &resume,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "suppress progress output",
				Destination: &quiet,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return cli.Exit("error: repo id is required", 1)
			}
			applyConfig(cmd, loadConfig())
			client := buildClient()
			log := buildLog()

			opts := hub.DownloadOptions{
				Revision:    revision,
				CacheDir:    cacheDir,
				Files:       args[1:],
				Include:     include,
				Exclude:     exclude,
				Parallelism: int(jobs),
				Force:       force,
				Resume:      resume,
			}
			if !quiet {
				opts.Progress = progressFunc(log)
			}

			dir, err := client.DownloadSnapshot(ctx, args[0], opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: download %s: %v", args[0], err), 1)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// progressFunc renders in-place progress on a terminal and falls back to
// one log line per finished file when stderr is piped. Updates for one file
// can arrive from multiple goroutines and the terminal update can arrive
// twice, so rendering is serialized and finished files are remembered.
func progressFunc(log logger.Logger) func(hub.Progress) {
	var mu sync.Mutex
	done := make(map[string]bool)
	tty := stderrIsTTY()

	return func(p hub.Progress) {
		mu.Lock()
		defer mu.Unlock()

		if done[p.Filename] {
			return
		}
		finished := p.Done || (p.Total > 0 && p.Completed >= p.Total)
		if finished {
			done[p.Filename] = true
		}

		if !tty {
			if finished {
				log.Info("downloaded", "file", p.Filename, "size", p.Total)
			}
			return
		}
		if p.Total > 0 {
			fmt.Fprintf(os.Stderr, "\r%-44s %10s / %-10s", p.Filename, humanBytes(p.Completed), humanBytes(p.Total))
		} else {
			fmt.Fprintf(os.Stderr, "\r%-44s %10s", p.Filename, humanBytes(p.Completed))
		}
		if finished {
			fmt.Fprintln(os.Stderr)
		}
	}
}
