package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTableName is the table that records the information about the
// program execution.
const ExecInfoTableName = "exec_info"

// ExecInfo is a property of the program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// execRecorder records the command line, the working directory, and the wall
// clock time at which the program starts and ends.
type execRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	recorder.CreateTable(ExecInfoTableName, ExecInfo{})

	return &execRecorder{recorder: recorder}
}

// Start collects the information available when the program starts.
func (e *execRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, ExecInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.entries = append(e.entries, ExecInfo{"Command", cmd})

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
}

// End writes the collected information along with the end time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.InsertData(ExecInfoTableName, ExecInfo{"End Time", endTime})

	e.entries = nil
}
