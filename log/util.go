package log

import (
	"runtime"
	"strconv"
)

// SkipCaller returns the file and line of the caller skip frames up.
func SkipCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	return file + ":" + strconv.Itoa(line)
}
