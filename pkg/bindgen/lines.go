package bindgen

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// CountLines returns the number of lines in the given file. Every newline terminates a line and
// trailing content without a final newline counts as one more line. A lone \r is not a line break.
func CountLines(path string) (int, error) {
	handle, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	lines, err := countLines(handle)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to read %s", path)
	}
	return lines, nil
}

func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 32*1024)
	lines := 0
	last := byte('\n')

	for {
		n, err := r.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if last != '\n' {
		lines++
	}
	return lines, nil
}

// Truncate returns the first n runes of msg
func Truncate(msg string, n int) string {
	if utf8.RuneCountInString(msg) <= n {
		return msg
	}

	return string([]rune(msg)[:n])
}
