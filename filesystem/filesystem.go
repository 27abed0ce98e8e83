// Package filesystem ties the volume's components together. A [FileSystem]
// owns the superblock, inode table, directory, and journal, and keeps them in
// step with the real contents stored through a [shadowfs.HostAdapter].
//
// Every mutating operation follows the same sequence: validate, record an
// intent in the journal, update the in-memory tables, perform the host I/O,
// then commit the journal entry. If anything after the intent fails, the
// tables and the journal are put back the way they were.
//
// A FileSystem isn't safe for concurrent use.
package filesystem

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/config"
	"github.com/dargueta/shadowfs/directory"
	"github.com/dargueta/shadowfs/inode"
	"github.com/dargueta/shadowfs/journal"
	"github.com/dargueta/shadowfs/snapshot"
	"github.com/dargueta/shadowfs/superblock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

type FileSystem struct {
	sb             *superblock.Superblock
	inodes         *inode.Table
	dir            *directory.Table
	journal        *journal.Journal
	host           shadowfs.HostAdapter
	logger         *slog.Logger
	checkpointPath string
	userID         int32
	groupID        int32
	// Now is the clock used for inode timestamps.
	Now func() time.Time
}

// Open loads the volume described by `cfg`. If there's no checkpoint yet, an
// empty volume is created with the configured geometry; otherwise the
// checkpoint's geometry wins. The journal is loaded but not replayed.
func Open(cfg config.Config, host shadowfs.HostAdapter, logger *slog.Logger) (*FileSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	state, err := snapshot.LoadFile(cfg.CheckpointPath)
	if errors.Is(err, snapshot.ErrNoCheckpoint) {
		logger.Info("no checkpoint found, creating empty volume", "path", cfg.CheckpointPath)
		state, err = NewState(cfg.BlockSize, cfg.NumBlocks, cfg.InodeTableSize, cfg.MaxFiles)
	}
	if err != nil {
		return nil, err
	}

	if state.Superblock.BlockSize != cfg.BlockSize ||
		state.Superblock.NumBlocks() != cfg.NumBlocks ||
		state.Superblock.InodeTableSize != cfg.InodeTableSize {
		logger.Warn(
			"checkpoint geometry differs from configuration, using checkpoint",
			"block_size", state.Superblock.BlockSize,
			"num_blocks", state.Superblock.NumBlocks(),
			"inode_table_size", state.Superblock.InodeTableSize,
		)
	}

	jrnl, err := journal.New(cfg.JournalPath, cfg.JournalCapacity, logger)
	if err != nil {
		return nil, err
	}
	if _, err = jrnl.Load(); err != nil {
		return nil, err
	}

	fsys := New(state, jrnl, host, logger, cfg.UserID, cfg.GroupID)
	fsys.checkpointPath = cfg.CheckpointPath
	return fsys, nil
}

// NewState creates the tables for an empty volume.
func NewState(blockSize, numBlocks, inodeTableSize, maxFiles uint) (snapshot.State, error) {
	sb, err := superblock.New(blockSize, numBlocks, inodeTableSize)
	if err != nil {
		return snapshot.State{}, err
	}
	return snapshot.State{
		Superblock: sb,
		Inodes:     inode.NewTable(sb),
		Directory:  directory.NewTable(maxFiles),
	}, nil
}

// New assembles a FileSystem from existing parts. Operations are performed on
// behalf of `userID` and `groupID`. [FileSystem.Checkpoint] is a no-op until a
// checkpoint path is set by [Open].
func New(
	state snapshot.State,
	jrnl *journal.Journal,
	host shadowfs.HostAdapter,
	logger *slog.Logger,
	userID, groupID int32,
) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{
		sb:      state.Superblock,
		inodes:  state.Inodes,
		dir:     state.Directory,
		journal: jrnl,
		host:    host,
		logger:  logger.With("component", "filesystem"),
		userID:  userID,
		groupID: groupID,
		Now:     time.Now,
	}
}

// State exposes the tables, e.g. for checkpointing.
func (fsys *FileSystem) State() snapshot.State {
	return snapshot.State{
		Superblock: fsys.sb,
		Inodes:     fsys.inodes,
		Directory:  fsys.dir,
	}
}

func (fsys *FileSystem) JournalEntries() []journal.Entry {
	return fsys.journal.Entries()
}

// Checkpoint saves the tables to the checkpoint file.
func (fsys *FileSystem) Checkpoint() error {
	if fsys.checkpointPath == "" {
		return nil
	}
	err := snapshot.SaveFile(fsys.checkpointPath, fsys.State())
	if err != nil {
		fsys.logger.Error("checkpoint failed", "path", fsys.checkpointPath, "error", err)
		return err
	}
	fsys.logger.Debug("checkpoint saved", "path", fsys.checkpointPath)
	return nil
}

// Close checkpoints the tables and flushes the journal. Both are attempted even
// if the first fails.
func (fsys *FileSystem) Close() error {
	var result *multierror.Error
	if err := fsys.Checkpoint(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fsys.journal.Save(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type Stats struct {
	VolumeID        uuid.UUID
	BlockSize       uint
	TotalBlocks     uint
	FreeBlocks      uint
	TotalInodes     uint
	FreeInodes      uint
	Files           int
	MaxFiles        uint
	JournalEntries  int
	JournalCapacity int
}

func (fsys *FileSystem) Stats() Stats {
	return Stats{
		VolumeID:        fsys.sb.VolumeID,
		BlockSize:       fsys.sb.BlockSize,
		TotalBlocks:     fsys.sb.NumBlocks(),
		FreeBlocks:      fsys.sb.FreeBlocks(),
		TotalInodes:     fsys.sb.InodeTableSize,
		FreeInodes:      fsys.sb.FreeInodes,
		Files:           fsys.dir.Len(),
		MaxFiles:        fsys.dir.Cap(),
		JournalEntries:  len(fsys.journal.Entries()),
		JournalCapacity: fsys.journal.Capacity(),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"volume %s: %d/%d blocks free (%d bytes each), %d/%d inodes free, %d/%d files, %d/%d journal entries",
		s.VolumeID,
		s.FreeBlocks,
		s.TotalBlocks,
		s.BlockSize,
		s.FreeInodes,
		s.TotalInodes,
		s.Files,
		s.MaxFiles,
		s.JournalEntries,
		s.JournalCapacity,
	)
}

// Replay re-executes the committed journal entries against this file system.
// Nothing is journaled while replaying.
func (fsys *FileSystem) Replay() (int, error) {
	return fsys.journal.Replay(fsys)
}
