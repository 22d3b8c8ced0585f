package pydriver

import (
	_ "embed"
)

//go:embed driver.py
var driverScript string

const (
	opHello    = "hello"
	opPrepare  = "prepare"
	opGen      = "gen"
	opFinalize = "finalize"
	opExit     = "exit"
)

type request struct {
	ID   string                 `json:"id"`
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Trace   string `json:"trace,omitempty"`
	Version string `json:"version,omitempty"`
}

// RemoteError is returned when the Python module raised an exception
type RemoteError struct {
	Op        string
	Message   string
	Traceback string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Trace returns the Python traceback
func (e *RemoteError) Trace() string {
	return e.Traceback
}
