package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/pkg/pretrained"
)

func repoCmd() *cli.Command {
	return &cli.Command{
		Name:  "repo",
		Usage: "Create, delete and inspect repositories",
		Commands: []*cli.Command{
			repoCreateCmd(),
			repoDeleteCmd(),
			repoInfoCmd(),
		},
	}
}

func repoCreateCmd() *cli.Command {
	var private bool

	return &cli.Command{
		Name:      "create",
		Usage:     "Create a repository",
		ArgsUsage: "<repo-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "private",
				Usage:       "create as private",
				Destination: &private,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return cli.Exit("error: repo id is required", 1)
			}
			applyConfig(cmd, loadConfig())
			client := buildClient()

			if err := client.CreateRepo(ctx, args[0], pretrained.CreateRepoOptions{Private: private}); err != nil {
				return cli.Exit(fmt.Sprintf("error: create repo: %v", err), 1)
			}
			fmt.Printf("created %s\n", args[0])
			return nil
		},
	}
}

func repoDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a repository",
		ArgsUsage: "<repo-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return cli.Exit("error: repo id is required", 1)
			}
			applyConfig(cmd, loadConfig())
			client := buildClient()

			if err := client.DeleteRepo(ctx, args[0]); err != nil {
				return cli.Exit(fmt.Sprintf("error: delete repo: %v", err), 1)
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func repoInfoCmd() *cli.Command {
	var revision string

	return &cli.Command{
		Name:      "info",
		Usage:     "Show repository metadata and files",
		ArgsUsage: "<repo-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "revision",
				Aliases:     []string{"r"},
				Usage:       "branch, tag or commit to inspect",
				Destination: &revision,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return cli.Exit("error: repo id is required", 1)
			}
			applyConfig(cmd, loadConfig())
			client := buildClient()

			info, err := client.RepoInfo(ctx, args[0], revision)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: repo info: %v", err), 1)
			}

			fmt.Printf("id:      %s\n", info.ID)
			if info.SHA != "" {
				fmt.Printf("commit:  %s\n", info.SHA)
			}
			fmt.Printf("private: %t\n", info.Private)
			if len(info.Siblings) == 0 {
				fmt.Println("no files")
				return nil
			}
			fmt.Println()

			data := make([][]string, 0, len(info.Siblings))
			for _, s := range info.Siblings {
				data = append(data, []string{s.Rfilename, humanBytes(s.Size)})
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"FILE", "SIZE"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}
