package common

import (
	"runtime"

	"github.com/devlights/gomy/output"
	deadlock "github.com/sasha-s/go-deadlock"
)

func SH_Assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}

// SH_Mutex is a sync.Mutex with an additional double-lock/double-unlock
// assertion, backed by the deadlock-detecting mutex used everywhere else
// in this package so a stuck lock surfaces as a report instead of a hang.
type SH_Mutex struct {
	mutex    *deadlock.Mutex
	isLocked bool
}

func NewSH_Mutex() *SH_Mutex {
	return &SH_Mutex{new(deadlock.Mutex), false}
}

func (m *SH_Mutex) Lock() {
	SH_Assert(!m.isLocked, "Mutex is already locked")
	m.mutex.Lock()
	m.isLocked = true
}

func (m *SH_Mutex) Unlock() {
	SH_Assert(m.isLocked, "Mutex is not locked")
	m.isLocked = false
	m.mutex.Unlock()
}

// RuntimeStack dumps every goroutine's stack to the debug log sink, for
// diagnosing a failure in a path with concurrent callers. SH_Assert does
// not call it.
//
// REFERENCES
//   - https://pkg.go.dev/runtime#Stack
//   - https://stackoverflow.com/questions/19094099/how-to-dump-goroutine-stacktraces
func RuntimeStack() {
	getStack := func(all bool) []byte {
		buf := make([]byte, 1024)
		for {
			n := runtime.Stack(buf, all)
			if n < len(buf) {
				return buf[:n]
			}
			buf = make([]byte, 2*len(buf))
		}
	}
	output.Stdoutl("=== stack-all   ", string(getStack(true)))
}
