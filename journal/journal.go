// Package journal implements the volume's operation log: a fixed-capacity ring
// of high-level operations, persisted to a text file after every change and
// replayable against anything that implements [Replayer].
//
// Entries are written ahead of the operation they describe. [Journal.Append]
// records an intent, and the caller either [Journal.Commit]s it once the
// operation has succeeded or [Journal.Discard]s it if the operation failed.
// Replay ignores intents that were never committed.
package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dargueta/shadowfs"
)

type undoRecord struct {
	previous Entry
	cursor   int
}

type Journal struct {
	path   string
	slots  []Entry
	cursor int
	undo   map[int]undoRecord
	logger *slog.Logger
	// Now gives the time stamped on new entries.
	Now func() time.Time
}

// New creates an empty journal that persists to `path`. Nothing is read from
// or written to disk until [Journal.Load] or the first [Journal.Append].
func New(path string, capacity uint, logger *slog.Logger) (*Journal, error) {
	if capacity == 0 {
		return nil, shadowfs.ErrInvalidArgument.WithMessage("journal capacity must be non-zero")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Journal{
		path:   path,
		slots:  make([]Entry, capacity),
		undo:   map[int]undoRecord{},
		logger: logger.With("component", "journal"),
		Now:    time.Now,
	}, nil
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Capacity() int {
	return len(j.slots)
}

// Cursor is the slot the next entry will be written to.
func (j *Journal) Cursor() int {
	return j.cursor
}

// Entries returns a copy of every non-empty slot, in slot order.
func (j *Journal) Entries() []Entry {
	entries := make([]Entry, 0, len(j.slots))
	for _, entry := range j.slots {
		if !entry.IsEmpty() {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Entry returns the contents of a single slot.
func (j *Journal) Entry(slot int) (Entry, error) {
	if err := j.checkSlot(slot); err != nil {
		return Entry{}, err
	}
	return j.slots[slot], nil
}

// Load replaces the in-memory ring with the contents of the journal file. A
// missing file leaves the ring empty. Malformed records are logged and
// skipped; the number skipped is returned.
//
// If the file holds more records than the ring can, the later ones overwrite
// the earlier ones just as if they'd been appended.
func (j *Journal) Load() (int, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		j.logger.Debug("no journal file, starting empty", "path", j.path)
		j.reset()
		return 0, nil
	}
	if err != nil {
		return 0, shadowfs.ErrIOFailed.Wrap(err)
	}

	entries, skipped, err := Decode(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	for _, skipErr := range skipped {
		j.logger.Warn("skipping journal record", "path", j.path, "error", skipErr)
	}

	j.reset()
	for i, entry := range entries {
		j.slots[i%len(j.slots)] = entry
	}
	j.cursor = len(entries) % len(j.slots)

	j.logger.Debug(
		"loaded journal",
		"path", j.path,
		"records", len(entries),
		"skipped", len(skipped),
		"cursor", j.cursor,
	)
	return len(skipped), nil
}

// Save writes every non-empty slot to the journal file, replacing its
// contents.
func (j *Journal) Save() error {
	var buffer bytes.Buffer
	if err := Encode(&buffer, j.slots); err != nil {
		return shadowfs.ErrIOFailed.Wrap(err)
	}

	dir := filepath.Dir(j.path)
	tempFile, err := os.CreateTemp(dir, filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return shadowfs.ErrIOFailed.Wrap(err)
	}
	tempPath := tempFile.Name()

	_, err = tempFile.Write(buffer.Bytes())
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tempPath, j.path)
	}
	if err != nil {
		os.Remove(tempPath)
		return shadowfs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Append records the intent to perform an operation, overwriting the oldest
// slot if the ring is full, and persists the journal. It returns the slot
// written, which must later be passed to [Journal.Commit] or
// [Journal.Discard].
//
// If the journal can't be persisted, the ring is left as it was.
func (j *Journal) Append(op Op, primary, secondary string, payload []byte) (int, error) {
	if _, ok := opNames[op]; !ok {
		return -1, shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't journal %s", op),
		)
	}

	slot := j.cursor
	j.undo[slot] = undoRecord{previous: j.slots[slot], cursor: j.cursor}
	j.slots[slot] = Entry{
		Timestamp: j.Now().Unix(),
		Op:        op,
		Primary:   primary,
		Secondary: secondary,
		Payload:   string(payload),
		State:     StateIntent,
	}
	j.cursor = (j.cursor + 1) % len(j.slots)

	if err := j.Save(); err != nil {
		j.rollback(slot)
		return -1, err
	}

	j.logger.Debug("appended intent", "slot", slot, "op", op.String(), "name", primary)
	return slot, nil
}

// Commit marks the entry in `slot` as completed and persists the journal.
func (j *Journal) Commit(slot int) error {
	if err := j.checkSlot(slot); err != nil {
		return err
	}
	if j.slots[slot].IsEmpty() || j.slots[slot].State != StateIntent {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("slot %d has no pending intent", slot),
		)
	}

	j.slots[slot].State = StateCommitted
	delete(j.undo, slot)
	return j.Save()
}

// Discard undoes an [Journal.Append] whose operation failed, restoring the
// slot's previous contents, and persists the journal.
func (j *Journal) Discard(slot int) error {
	if err := j.checkSlot(slot); err != nil {
		return err
	}
	if _, ok := j.undo[slot]; !ok {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("slot %d has no pending intent", slot),
		)
	}

	j.logger.Debug("discarding intent", "slot", slot, "op", j.slots[slot].Op.String())
	j.rollback(slot)
	return j.Save()
}

func (j *Journal) rollback(slot int) {
	record := j.undo[slot]
	delete(j.undo, slot)
	j.slots[slot] = record.previous

	// Only move the cursor back if nothing has been appended since.
	if j.cursor == (slot+1)%len(j.slots) {
		j.cursor = record.cursor
	}
}

func (j *Journal) reset() {
	for i := range j.slots {
		j.slots[i] = Entry{}
	}
	j.cursor = 0
	j.undo = map[int]undoRecord{}
}

func (j *Journal) checkSlot(slot int) error {
	if slot < 0 || slot >= len(j.slots) {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("slot %d not in range [0, %d)", slot, len(j.slots)),
		)
	}
	return nil
}
