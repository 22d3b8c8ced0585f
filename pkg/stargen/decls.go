package stargen

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Decl is a function declaration found in a C header
type Decl struct {
	Name   string
	Return string
	Params string
	// Line is the 1-based line the declaration starts on
	Line int
}

// ParseDecls scans a header for public function declarations. It recognizes sokol's
// SOKOL_*_API_DECL macro and plain extern declarations. Declarations may span multiple lines.
// Only functions starting with prefix are returned.
func ParseDecls(r io.Reader, prefix string) ([]Decl, error) {
	result := make([]Decl, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pending := strings.Builder{}
	start := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if pending.Len() == 0 {
			rest, ok := stripDeclPrefix(line)
			if !ok {
				continue
			}

			start = lineNo
			line = rest
		} else {
			pending.WriteString(" ")
		}

		pending.WriteString(line)
		if !strings.Contains(line, ";") {
			continue
		}

		decl, ok := splitDecl(pending.String())
		pending.Reset()
		if ok && strings.HasPrefix(decl.Name, prefix) {
			decl.Line = start
			result = append(result, decl)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read header")
	}
	return result, nil
}

func stripDeclPrefix(line string) (string, bool) {
	if strings.HasPrefix(line, "SOKOL_") {
		pos := strings.Index(line, "_API_DECL ")
		if pos < 0 {
			return "", false
		}
		return strings.TrimSpace(line[pos+len("_API_DECL "):]), true
	}

	if strings.HasPrefix(line, "extern ") && !strings.HasPrefix(line, `extern "C"`) {
		return strings.TrimSpace(line[len("extern "):]), true
	}

	return "", false
}

func splitDecl(decl string) (Decl, bool) {
	open := strings.Index(decl, "(")
	end := strings.LastIndex(decl, ")")
	if open < 0 || end < open {
		// not a function (i.e. an extern variable)
		return Decl{}, false
	}

	fields := strings.Fields(decl[:open])
	if len(fields) < 2 {
		return Decl{}, false
	}

	name := fields[len(fields)-1]
	ret := strings.Join(fields[:len(fields)-1], " ")
	for strings.HasPrefix(name, "*") {
		name = name[1:]
		ret += "*"
	}

	params := strings.Join(strings.Fields(decl[open+1:end]), " ")
	if params == "void" {
		params = ""
	}

	return Decl{
		Name:   name,
		Return: ret,
		Params: params,
	}, name != ""
}
