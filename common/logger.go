package common

import (
	"fmt"

	"github.com/devlights/gomy/output"
)

type LogLevel int32

const (
	DEBUG_INFO_DETAIL LogLevel = 1
	DEBUG_INFO         LogLevel = 2
	RDB_OP_FUNC_CALL   LogLevel = 4
	DEBUGGING          LogLevel = 8
	INFO               LogLevel = 16
	WARN               LogLevel = 32
	ERROR              LogLevel = 64
	FATAL              LogLevel = 128
)

// LogLevelSetting is a bitmask of the LogLevel values that are currently
// emitted. Zero by default so kernel internals stay silent unless a test
// or caller opts in.
var LogLevelSetting LogLevel = 0

func ShPrintf(logLevel LogLevel, fmtStr string, a ...interface{}) {
	if logLevel&LogLevelSetting > 0 {
		output.Stdoutl("", fmt.Sprintf(fmtStr, a...))
	}
}
