// Command sfsctl is a command line interface to the shadowing file system,
// in the style of the teacher's cmd/pgtokenstore.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/shadowfs/pkg/archive"
	"github.com/weberc2/shadowfs/pkg/blockdev"
	"github.com/weberc2/shadowfs/pkg/config"
	"github.com/weberc2/shadowfs/pkg/journal"
	"github.com/weberc2/shadowfs/pkg/sfs"
)

func main() {
	app := cli.App{
		Name:        "sfsctl",
		Description: "a command line interface to the shadowing file system",
		Commands: []*cli.Command{
			{
				Name:        "mkfs",
				Description: "format a fresh disk, or validate an existing one",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "fresh", Value: true},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					g := sfs.Geometry{
						BlockSize: cfg.BlockSize,
						NumBlocks: cfg.NumBlocks,
						NumInodes: cfg.NumInodes,
						NumShadow: cfg.NumShadow,
					}
					if ctx.Bool("fresh") {
						dev, err := blockdev.OpenFile(cfg.DiskPath, g.BlockSize, g.NumBlocks, true)
						if err != nil {
							return fmt.Errorf("opening disk: %w", err)
						}
						fs, err := sfs.Format(dev, g, sfs.WithDiskID(cfg.DiskID))
						if err != nil {
							return fmt.Errorf("formatting: %w", err)
						}
						return fs.Close()
					}
					fs, err := mount(cfg)
					if err != nil {
						return err
					}
					return fs.Close()
				},
			},
			{
				Name:        "put",
				Description: "write a local file's contents into the shadowing file system",
				ArgsUsage:   "<name> <local-path>",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					name, path := ctx.Args().Get(0), ctx.Args().Get(1)
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("reading local file: %w", err)
					}
					fd, err := fs.FOpen(name)
					if err != nil {
						return fmt.Errorf("opening `%s`: %w", name, err)
					}
					if _, err := fs.FWrite(fd, data); err != nil {
						fs.FClose(fd)
						return fmt.Errorf("writing `%s`: %w", name, err)
					}
					return fs.FClose(fd)
				}),
			},
			{
				Name:        "cat",
				Description: "print a file's contents to stdout",
				ArgsUsage:   "<name>",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					name := ctx.Args().Get(0)
					fd, err := fs.FOpen(name)
					if err != nil {
						return fmt.Errorf("opening `%s`: %w", name, err)
					}
					defer fs.FClose(fd)
					buf := make([]byte, 4096)
					for {
						n, err := fs.FRead(fd, buf)
						if err != nil {
							return fmt.Errorf("reading `%s`: %w", name, err)
						}
						if n == 0 {
							return nil
						}
						if _, err := os.Stdout.Write(buf[:n]); err != nil {
							return fmt.Errorf("writing to stdout: %w", err)
						}
					}
				}),
			},
			{
				Name:        "rm",
				Description: "remove a file",
				ArgsUsage:   "<name>",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					return fs.Remove(ctx.Args().Get(0))
				}),
			},
			{
				Name:        "size",
				Description: "print a file's size in bytes",
				ArgsUsage:   "<name>",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					size, err := fs.GetFileSize(ctx.Args().Get(0))
					if err != nil {
						return err
					}
					_, err = fmt.Println(size)
					return err
				}),
			},
			{
				Name:        "ls",
				Description: "list files in the live directory",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					for {
						name, ok := fs.GetNextFileName()
						if !ok {
							return nil
						}
						if _, err := fmt.Println(name); err != nil {
							return err
						}
					}
				}),
			},
			{
				Name:        "commit",
				Description: "snapshot the live directory into the shadow FIFO",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					return fs.Commit(ctx.Context)
				}),
			},
			{
				Name:        "restore",
				Description: "replace the live directory with a shadow snapshot",
				ArgsUsage:   "<slot>",
				Action: withFS(func(fs *sfs.FileSystem, ctx *cli.Context) error {
					k, err := strconv.ParseUint(ctx.Args().Get(0), 10, 32)
					if err != nil {
						return fmt.Errorf("parsing slot: %w", err)
					}
					return fs.Restore(ctx.Context, uint32(k))
				}),
			},
			{
				Name:        "fetch-archive",
				Description: "download a snapshot directory block previously archived to S3",
				ArgsUsage:   "<slot> <local-path>",
				Action: func(ctx *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if cfg.ArchiveBucket == "" {
						return fmt.Errorf("archiving is not configured for this disk")
					}
					slot, err := strconv.ParseUint(ctx.Args().Get(0), 10, 32)
					if err != nil {
						return fmt.Errorf("parsing slot: %w", err)
					}
					a, err := archive.NewS3Archiver(cfg.ArchiveBucket)
					if err != nil {
						return fmt.Errorf("configuring archiver: %w", err)
					}
					body, err := a.FetchSnapshot(ctx.Context, cfg.DiskID, uint32(slot))
					if err != nil {
						return err
					}
					defer body.Close()
					out, err := os.Create(ctx.Args().Get(1))
					if err != nil {
						return fmt.Errorf("creating local file: %w", err)
					}
					defer out.Close()
					_, err = io.Copy(out, body)
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mount(cfg *config.Config) (*sfs.FileSystem, error) {
	dev, err := blockdev.OpenFile(cfg.DiskPath, cfg.BlockSize, cfg.NumBlocks, false)
	if err != nil {
		return nil, fmt.Errorf("opening disk: %w", err)
	}
	opts := []sfs.Option{sfs.WithDiskID(cfg.DiskID)}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(
		"op", uuid.NewString(),
	)
	opts = append(opts, sfs.WithLogger(logger))

	if cfg.ArchiveBucket != "" {
		a, err := archive.NewS3Archiver(cfg.ArchiveBucket)
		if err != nil {
			return nil, fmt.Errorf("configuring archiver: %w", err)
		}
		opts = append(opts, sfs.WithArchiver(a))
	}
	if cfg.JournalEnabled {
		j, err := journal.Open(context.Background())
		if err != nil {
			return nil, fmt.Errorf("configuring journal: %w", err)
		}
		opts = append(opts, sfs.WithJournal(j))
	}

	fs, err := sfs.Mount(dev, cfg.NumShadow, opts...)
	if err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	return fs, nil
}

func withFS(f func(*sfs.FileSystem, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fs, err := mount(cfg)
		if err != nil {
			return err
		}
		if err := f(fs, ctx); err != nil {
			fs.Close()
			return err
		}
		return fs.Close()
	}
}
