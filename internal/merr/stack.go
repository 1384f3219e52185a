package merr

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// maxStackSize bounds how many frames are captured per error, the same
// bound mediocre-go-lib's merr package uses.
const maxStackSize = 50

type stacktrace struct {
	frames []uintptr
}

func newStacktrace(skip int) stacktrace {
	stackSlice := make([]uintptr, maxStackSize)
	l := runtime.Callers(skip+2, stackSlice)
	return stacktrace{frames: stackSlice[:l]}
}

// String returns a short "pkg/file:line" description of the top-most frame.
func (s stacktrace) String() string {
	if len(s.frames) == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames(s.frames).Next()
	file := filepath.Base(frame.File)
	dir := filepath.Base(filepath.Dir(frame.File))
	return fmt.Sprintf("%s/%s:%d", dir, file, frame.Line)
}
