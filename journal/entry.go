package journal

import (
	"fmt"
	"time"

	"github.com/dargueta/shadowfs"
)

// Op is the kind of high-level operation a journal entry records.
type Op uint8

const (
	OpInvalid Op = iota
	OpCreate
	OpDelete
	OpModify
	OpRename
	OpRead
	OpChangePermissions
)

var opNames = map[Op]string{
	OpCreate:            "CREATE",
	OpDelete:            "DELETE",
	OpModify:            "MODIFY",
	OpRename:            "RENAME",
	OpRead:              "READ",
	OpChangePermissions: "CHANGE_PERMISSIONS",
}

// Older logs spell some operations differently.
var legacyOpNames = map[string]Op{
	"CREATED": OpCreate,
	"DELETED": OpDelete,
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// ParseOp converts an operation name as written in the log back to an [Op].
func ParseOp(name string) (Op, error) {
	for op, opName := range opNames {
		if opName == name {
			return op, nil
		}
	}
	if op, ok := legacyOpNames[name]; ok {
		return op, nil
	}
	return OpInvalid, shadowfs.ErrMalformedRecord.WithMessage(
		fmt.Sprintf("unknown operation %q", name),
	)
}

func (op Op) MarshalCSV() (string, error) {
	if _, ok := opNames[op]; !ok {
		return "", shadowfs.ErrInvalidArgument.WithMessage(op.String())
	}
	return op.String(), nil
}

func (op *Op) UnmarshalCSV(text string) error {
	parsed, err := ParseOp(text)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// State distinguishes an operation that was started from one that finished.
// Only committed entries are replayed.
type State uint8

const (
	StateCommitted State = iota
	StateIntent
)

func (s State) String() string {
	switch s {
	case StateCommitted:
		return "COMMITTED"
	case StateIntent:
		return "INTENT"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalCSV() (string, error) {
	return s.String(), nil
}

func (s *State) UnmarshalCSV(text string) error {
	switch text {
	// Records without a state field predate intents and are always complete.
	case "COMMITTED", "":
		*s = StateCommitted
	case "INTENT":
		*s = StateIntent
	default:
		return shadowfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("unknown state %q", text),
		)
	}
	return nil
}

// Entry is a single slot of the journal ring. A zero timestamp marks an unused
// slot.
//
// Secondary holds the new name for [OpRename], the octal mode for
// [OpChangePermissions], and "directory" for an [OpCreate] that made a
// directory. Payload is only used by [OpModify].
type Entry struct {
	Timestamp int64  `csv:"timestamp"`
	Op        Op     `csv:"operation"`
	Primary   string `csv:"primary"`
	Secondary string `csv:"secondary"`
	Payload   string `csv:"payload"`
	State     State  `csv:"state"`
}

// SecondaryDirectory marks a CREATE entry as having made a directory.
const SecondaryDirectory = "directory"

func (e *Entry) IsEmpty() bool {
	return e.Timestamp == 0
}

func (e *Entry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

func (e *Entry) String() string {
	return fmt.Sprintf(
		"%s %s %q %q (%d bytes) %s",
		e.Time().UTC().Format(time.RFC3339),
		e.Op,
		e.Primary,
		e.Secondary,
		len(e.Payload),
		e.State,
	)
}
