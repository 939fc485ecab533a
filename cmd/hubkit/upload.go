package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/pkg/pretrained"
)

func uploadCmd() *cli.Command {
	var (
		revision string
		message  string
		private  bool
		create   bool
	)

	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"up"},
		Usage:     "Upload a file or directory tree to a repository",
		ArgsUsage: "<repo-id> <path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "revision",
				Aliases:     []string{"r"},
				Usage:       "branch to upload to",
				Destination: &revision,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "commit message",
				Destination: &message,
			},
			&cli.BoolFlag{
				Name:        "private",
				Usage:       "create the repository as private",
				Destination: &private,
			},
			&cli.BoolFlag{
				Name:        "create",
				Usage:       "create the repository if it does not exist",
				Destination: &create,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 2 {
				return cli.Exit("error: repo id and path are required", 1)
			}
			repoID, src := args[0], args[1]
			applyConfig(cmd, loadConfig())
			client := buildClient()
			log := buildLog()

			if create {
				err := client.CreateRepo(ctx, repoID, pretrained.CreateRepoOptions{Private: private, ExistOK: true})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create repo: %v", err), 1)
				}
			}

			items, err := collectUploads(src)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(items) == 0 {
				return cli.Exit(fmt.Sprintf("error: nothing to upload under %s", src), 1)
			}

			for _, item := range items {
				opts := pretrained.UploadOptions{Revision: revision, CommitMessage: message}
				if err := client.UploadFile(ctx, item.local, repoID, item.remote, opts); err != nil {
					return cli.Exit(fmt.Sprintf("error: upload %s: %v", item.remote, err), 1)
				}
				log.Info("uploaded", "repo", repoID, "path", item.remote)
			}
			fmt.Printf("%d file(s) uploaded to %s\n", len(items), repoID)
			return nil
		},
	}
}

type uploadItem struct {
	local  string
	remote string
}

// collectUploads lists what to push: the file itself, or every regular
// file under a directory keyed by its slash-separated relative path.
func collectUploads(src string) ([]uploadItem, error) {
	st, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []uploadItem{{local: src, remote: filepath.Base(src)}}, nil
	}

	var items []uploadItem
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		items = append(items, uploadItem{local: p, remote: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
