package testing

import (
	"io"
	"testing"

	"github.com/dargueta/shadowfs/snapshot"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// CheckpointStream saves `state` to an in-memory stream and rewinds it, ready
// to be passed to [snapshot.Load].
//
//   - The stream's size is fixed to exactly the checkpoint's size. Attempting to
//     write past the end will trigger an error.
//   - The returned slice is the stream's backing storage; modifying it changes
//     what the stream reads back.
func CheckpointStream(state snapshot.State, t *testing.T) (io.ReadWriteSeeker, []byte) {
	backing := make([]byte, snapshot.Size(state))
	stream := bytesextra.NewReadWriteSeeker(backing)

	require.NoError(t, snapshot.Save(stream, state), "failed to save checkpoint")

	offset, err := stream.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.EqualValues(t, len(backing), offset, "checkpoint is the wrong size")

	_, err = stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return stream, backing
}
