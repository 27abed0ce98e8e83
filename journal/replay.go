package journal

import (
	"fmt"

	"github.com/dargueta/shadowfs/permissions"
	"github.com/hashicorp/go-multierror"
)

// Replayer re-executes journaled operations. Implementations must not journal
// the operations they replay.
type Replayer interface {
	ReplayCreate(name string, isDirectory bool) error
	ReplayDelete(name string) error
	ReplayModify(name string, content []byte) error
	ReplayRename(oldName, newName string) error
	ReplayChmod(name string, mode uint32) error
}

// Replay re-executes every committed entry in slot order. Once the ring has
// wrapped this isn't necessarily the order the operations happened in.
//
// A failing entry is logged and replay moves on to the next one. The returned
// error, if any, combines every failure. The first return value is the number
// of entries applied successfully.
func (j *Journal) Replay(target Replayer) (int, error) {
	var result *multierror.Error
	applied, failed := 0, 0

	for slot := range j.slots {
		entry := &j.slots[slot]
		if entry.IsEmpty() {
			continue
		}
		if entry.State != StateCommitted {
			j.logger.Info("skipping uncommitted entry", "slot", slot, "op", entry.Op.String())
			continue
		}

		err := replayEntry(target, entry)
		if err != nil {
			j.logger.Warn(
				"replay failed",
				"slot", slot,
				"op", entry.Op.String(),
				"name", entry.Primary,
				"error", err,
			)
			result = multierror.Append(
				result, fmt.Errorf("slot %d (%s %q): %w", slot, entry.Op, entry.Primary, err),
			)
			failed++
			continue
		}
		applied++
	}

	j.logger.Info("replay finished", "applied", applied, "failed", failed)
	return applied, result.ErrorOrNil()
}

func replayEntry(target Replayer, entry *Entry) error {
	switch entry.Op {
	case OpCreate:
		return target.ReplayCreate(entry.Primary, entry.Secondary == SecondaryDirectory)
	case OpDelete:
		return target.ReplayDelete(entry.Primary)
	case OpModify:
		return target.ReplayModify(entry.Primary, []byte(entry.Payload))
	case OpRename:
		return target.ReplayRename(entry.Primary, entry.Secondary)
	case OpChangePermissions:
		mode, err := permissions.ParseMode(entry.Secondary)
		if err != nil {
			return err
		}
		return target.ReplayChmod(entry.Primary, mode)
	case OpRead:
		return nil
	default:
		return fmt.Errorf("unsupported operation %s", entry.Op)
	}
}
