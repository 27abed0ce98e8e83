package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dargueta/shadowfs/config"
	"github.com/dargueta/shadowfs/filesystem"
	"github.com/dargueta/shadowfs/hostfs"
	"github.com/dargueta/shadowfs/permissions"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
)

const timeLayout = "2006-01-02 15:04:05"

// session holds the volume for the duration of one command. The volume is
// opened on first use so that `--help` doesn't touch the disk.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	fsys   *filesystem.FileSystem
}

func (s *session) open(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("root") {
		cfg.Root = c.String("root")
	}
	if c.IsSet("journal") {
		cfg.JournalPath = c.String("journal")
	}
	if c.IsSet("checkpoint") {
		cfg.CheckpointPath = c.String("checkpoint")
	}
	if c.IsSet("user") {
		cfg.UserID = int32(c.Int("user"))
	}
	if c.IsSet("group") {
		cfg.GroupID = int32(c.Int("group"))
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.logger = slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	return nil
}

func (s *session) volume() (*filesystem.FileSystem, error) {
	if s.fsys != nil {
		return s.fsys, nil
	}

	host, err := hostfs.NewLocal(s.cfg.Root, s.logger)
	if err != nil {
		return nil, err
	}
	s.fsys, err = filesystem.Open(s.cfg, host, s.logger)
	return s.fsys, err
}

func (s *session) close(c *cli.Context) error {
	if s.fsys == nil {
		return nil
	}
	return s.fsys.Close()
}

// args returns exactly `count` positional arguments or a usage error.
func args(c *cli.Context, count int) ([]string, error) {
	if c.NArg() != count {
		return nil, usageError(
			"%s: expected %d argument(s), got %d\nusage: %s %s",
			c.Command.Name, count, c.NArg(), c.Command.HelpName, c.Command.ArgsUsage,
		)
	}
	return c.Args().Slice(), nil
}

func parseUserID(text string) (int32, error) {
	value, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, usageError("bad user ID %q", text)
	}
	return int32(value), nil
}

func (s *session) initVolume(c *cli.Context) error {
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, fsys.Stats())
	return nil
}

func (s *session) create(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.Create(argv[0])
}

func (s *session) mkdir(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.Mkdir(argv[0])
}

func (s *session) remove(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.Delete(argv[0])
}

func (s *session) rename(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.Rename(argv[0], argv[1])
}

func (s *session) chmod(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	mode, err := permissions.ParseMode(argv[0])
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.Chmod(argv[1], mode)
}

func (s *session) write(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}

	var content []byte
	switch {
	case c.IsSet("data") && c.IsSet("from"):
		return usageError("--data and --from are mutually exclusive")
	case c.IsSet("data"):
		content = []byte(c.String("data"))
	case c.IsSet("from"):
		content, err = os.ReadFile(c.Path("from"))
	default:
		content, err = io.ReadAll(c.App.Reader)
	}
	if err != nil {
		return fmt.Errorf("reading new content: %w", err)
	}

	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.WriteFile(argv[0], content)
}

func (s *session) cat(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	data, err := fsys.ReadFile(argv[0])
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func (s *session) copyFile(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	copyName, err := fsys.Copy(argv[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, copyName)
	return nil
}

func (s *session) list(c *cli.Context) error {
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	entries, err := fsys.List(c.String("filter"))
	if err != nil {
		return err
	}

	tbl := table.New("Name", "Type", "Size", "Accessed", "Changed", "Modified").WithWriter(c.App.Writer)
	for _, entry := range entries {
		tbl.AddRow(
			entry.Name,
			entry.Kind(),
			entry.Size,
			entry.Atime.Format(timeLayout),
			entry.Ctime.Format(timeLayout),
			entry.Mtime.Format(timeLayout),
		)
	}
	tbl.Print()
	return nil
}

func (s *session) stat(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	details, err := fsys.Details(argv[0])
	if err != nil {
		return err
	}

	tbl := table.New("Field", "Value").WithWriter(c.App.Writer)
	tbl.AddRow("Name", details.Name)
	tbl.AddRow("Type", details.Kind())
	tbl.AddRow("Inode", details.Inode)
	tbl.AddRow("Mode", fmt.Sprintf("%s (%03o)", details.ModeString, details.Mode))
	tbl.AddRow("Owner", details.OwnerID)
	tbl.AddRow("Group", details.GroupID)
	tbl.AddRow("Size", details.Size)
	tbl.AddRow("Blocks", fmt.Sprint(details.Blocks))
	if details.IsDir {
		tbl.AddRow("Index block", details.IndexBlock)
	}
	for _, entry := range details.ACL {
		tbl.AddRow("ACL", fmt.Sprintf("user %d: %s", entry.UserID,
			permissions.FormatMode(false, entry.Permissions)[7:]))
	}
	tbl.AddRow("Accessed", details.Atime.Format(timeLayout))
	tbl.AddRow("Changed", details.Ctime.Format(timeLayout))
	tbl.AddRow("Modified", details.Mtime.Format(timeLayout))
	tbl.Print()
	return nil
}

func (s *session) access(c *cli.Context) error {
	argv, err := args(c, 3)
	if err != nil {
		return err
	}
	userID, err := parseUserID(argv[1])
	if err != nil {
		return err
	}
	bits, err := permissions.ParseBits(argv[2])
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}

	allowed, err := fsys.HasPermission(argv[0], userID, bits)
	if err != nil {
		return err
	}
	if allowed {
		fmt.Fprintln(c.App.Writer, "granted")
		return nil
	}
	fmt.Fprintln(c.App.Writer, "denied")
	return errDenied
}

func (s *session) aclAdd(c *cli.Context) error {
	argv, err := args(c, 3)
	if err != nil {
		return err
	}
	userID, err := parseUserID(argv[1])
	if err != nil {
		return err
	}
	bits, err := permissions.ParseBits(argv[2])
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.AddACL(argv[0], userID, bits)
}

func (s *session) aclRemove(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	userID, err := parseUserID(argv[1])
	if err != nil {
		return err
	}
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	return fsys.RemoveACL(argv[0], userID)
}

func (s *session) replay(c *cli.Context) error {
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	applied, err := fsys.Replay()
	fmt.Fprintf(c.App.Writer, "applied %d journal entries\n", applied)
	return err
}

func (s *session) showJournal(c *cli.Context) error {
	fsys, err := s.volume()
	if err != nil {
		return err
	}

	tbl := table.New("Time", "Operation", "Name", "Argument", "Payload", "State").WithWriter(c.App.Writer)
	for _, entry := range fsys.JournalEntries() {
		tbl.AddRow(
			entry.Time().Format(time.RFC3339),
			entry.Op,
			entry.Primary,
			entry.Secondary,
			len(entry.Payload),
			entry.State,
		)
	}
	tbl.Print()
	return nil
}

func (s *session) diskFree(c *cli.Context) error {
	fsys, err := s.volume()
	if err != nil {
		return err
	}
	stats := fsys.Stats()

	tbl := table.New("Resource", "Total", "Used", "Free").WithWriter(c.App.Writer)
	tbl.AddRow("blocks", stats.TotalBlocks, stats.TotalBlocks-stats.FreeBlocks, stats.FreeBlocks)
	tbl.AddRow("inodes", stats.TotalInodes, stats.TotalInodes-stats.FreeInodes, stats.FreeInodes)
	tbl.AddRow("files", stats.MaxFiles, stats.Files, int(stats.MaxFiles)-stats.Files)
	tbl.AddRow("journal", stats.JournalCapacity, stats.JournalEntries, stats.JournalCapacity-stats.JournalEntries)
	tbl.Print()

	fmt.Fprintf(c.App.Writer, "volume %s, %d-byte blocks\n", stats.VolumeID, stats.BlockSize)
	return nil
}
