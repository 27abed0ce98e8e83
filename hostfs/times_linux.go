package hostfs

import (
	"io/fs"
	"syscall"
	"time"
)

func accessAndChangeTimes(info fs.FileInfo) (time.Time, time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(st.Atim.Unix()), time.Unix(st.Ctim.Unix())
}
