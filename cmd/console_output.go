package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter renders zerolog's JSON events as colored console messages
type ConsoleWriter struct {
	Out io.Writer
	// Traces prints the trace field of skipped tasks below their warning. NewConsoleWriter enables it.
	Traces bool

	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{Out: out, Traces: true}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal":
		fallthrough
	case "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug":
		fallthrough
	case "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	if source, ok := evt["source"].(string); ok {
		w.buffer.WriteString(source + ": ")
	}

	if evt["level"] == "error" || evt["level"] == "fatal" {
		w.buffer.WriteString("Error: ")
	}

	msg, _ := evt["message"].(string)

	if path, ok := evt["path"].(string); ok {
		// simplify the path
		wd, err := os.Getwd()
		if err == nil {
			relPath, err := filepath.Rel(wd, path)
			if err == nil && !strings.HasPrefix(relPath, "..") {
				msg = strings.ReplaceAll(msg, path, relPath)
			}
		}
	}

	w.buffer.WriteString(msg)

	if errorDetails, ok := evt["error"].(string); ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails)
	}

	if trace, ok := evt["trace"].(string); ok && w.Traces && trace != "" {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(strings.TrimRight(trace, "\n"))
	}

	if os.Getenv("BINDGEN_DEBUG") != "" {
		w.buffer.WriteString("\n")

		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString("[reset]\n")

	_, err = io.WriteString(w.Out, colorize(w.buffer.String()))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func colorize(msg string) string {
	c := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: os.Getenv("NO_COLOR") != "",
		Reset:   true,
	}
	return c.Color(msg)
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("BINDGEN_DEBUG") != "")
	}
}
