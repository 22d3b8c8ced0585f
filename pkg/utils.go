package pkg

import (
	"io"
	"os"

	"github.com/mitchellh/colorstring"
)

// Out receives the banners printed by PrintTask, PrintSubtask and PrintError
var Out io.Writer = os.Stdout

func PrintTask(msg string) {
	colorstring.Fprintf(Out, "[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Fprintf(Out, "[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Fprintf(Out, "[red][bold]  ->[reset] %s\n", msg)
}
