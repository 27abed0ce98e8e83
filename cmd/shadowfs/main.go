package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadowfs: %s\n", err.Error())
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.App {
	sess := &session{}

	return &cli.App{
		Name:  "shadowfs",
		Usage: "Track Unix-style metadata and a recovery journal for files kept in a host directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file, created with defaults if missing",
				EnvVars: []string{"SHADOWFS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "host directory holding the files' contents",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "path to the journal file",
			},
			&cli.StringFlag{
				Name:  "checkpoint",
				Usage: "path to the checkpoint file",
			},
			&cli.IntFlag{
				Name:  "user",
				Usage: "user ID to act as",
			},
			&cli.IntFlag{
				Name:  "group",
				Usage: "group ID to act as",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "one of debug, info, warn, error",
			},
		},
		Before: sess.open,
		After:  sess.close,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the volume if it doesn't exist and show its geometry",
				Action: sess.initVolume,
			},
			{
				Name:      "create",
				Usage:     "Create an empty file",
				ArgsUsage: "NAME",
				Action:    sess.create,
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory",
				ArgsUsage: "NAME",
				Action:    sess.mkdir,
			},
			{
				Name:      "rm",
				Usage:     "Delete a file or empty directory",
				ArgsUsage: "NAME",
				Action:    sess.remove,
			},
			{
				Name:      "mv",
				Usage:     "Rename a file",
				ArgsUsage: "OLD_NAME NEW_NAME",
				Action:    sess.rename,
			},
			{
				Name:      "chmod",
				Usage:     "Change a file's permission bits",
				ArgsUsage: "OCTAL_MODE NAME",
				Action:    sess.chmod,
			},
			{
				Name:      "write",
				Usage:     "Replace a file's contents with --data, --from, or standard input",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "literal content"},
					&cli.PathFlag{Name: "from", Usage: "read content from this host file"},
				},
				Action: sess.write,
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents",
				ArgsUsage: "NAME",
				Action:    sess.cat,
			},
			{
				Name:      "cp",
				Usage:     "Copy a file to NAME_copy",
				ArgsUsage: "NAME",
				Action:    sess.copyFile,
			},
			{
				Name:  "ls",
				Usage: "List the files in the root",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Usage: "only show names containing this text"},
				},
				Action: sess.list,
			},
			{
				Name:      "stat",
				Usage:     "Show a file's metadata",
				ArgsUsage: "NAME",
				Action:    sess.stat,
			},
			{
				Name:      "access",
				Usage:     "Check whether a user holds permissions on a file",
				ArgsUsage: "NAME USER_ID rwx",
				Action:    sess.access,
			},
			{
				Name:  "acl",
				Usage: "Manage a file's access control list",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Grant a user extra permissions",
						ArgsUsage: "NAME USER_ID rwx",
						Action:    sess.aclAdd,
					},
					{
						Name:      "rm",
						Usage:     "Remove a user's ACL entry",
						ArgsUsage: "NAME USER_ID",
						Action:    sess.aclRemove,
					},
				},
			},
			{
				Name:   "replay",
				Usage:  "Re-execute the committed journal entries",
				Action: sess.replay,
			},
			{
				Name:   "journal",
				Usage:  "Show the journal",
				Action: sess.showJournal,
			},
			{
				Name:   "df",
				Usage:  "Show block and inode usage",
				Action: sess.diskFree,
			},
		},
	}
}
