package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/pkg/hub"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clean the download cache",
		Commands: []*cli.Command{
			cacheLsCmd(),
			cacheRmCmd(),
			cachePathCmd(),
		},
	}
}

func cacheLsCmd() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "List cached models",
		Flags:   []cli.Flag{cacheDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConfig(cmd, loadConfig())
			root, err := cacheRootDir()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			models, err := hub.ListCached(root)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: list cache: %v", err), 1)
			}
			if len(models) == 0 {
				fmt.Println("cache is empty")
				return nil
			}

			var total int64
			data := make([][]string, 0, len(models))
			for _, m := range models {
				total += m.Size
				data = append(data, []string{
					m.RepoID,
					strings.Join(m.Revisions, ", "),
					strconv.Itoa(m.Files),
					humanBytes(m.Size),
				})
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"MODEL", "REVISIONS", "FILES", "SIZE"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			fmt.Printf("\n%d model(s), %s total\n", len(models), humanBytes(total))
			return nil
		},
	}
}

func cacheRmCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove one model from the cache",
		ArgsUsage: "<repo-id>",
		Flags:     []cli.Flag{cacheDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return cli.Exit("error: repo id is required", 1)
			}
			applyConfig(cmd, loadConfig())
			root, err := cacheRootDir()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if err := hub.RemoveCached(root, args[0]); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fmt.Printf("removed %s\n", args[0])
			return nil
		},
	}
}

func cachePathCmd() *cli.Command {
	return &cli.Command{
		Name:  "path",
		Usage: "Print the cache root",
		Flags: []cli.Flag{cacheDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConfig(cmd, loadConfig())
			root, err := cacheRootDir()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fmt.Println(root)
			return nil
		},
	}
}
