package client

import (
	"bufio"
	"io"
	"strings"
)

// ExtractID returns the asset identifier of a share reference: the last path
// segment after dropping the query, fragment, shell-escape backslashes and
// trailing slashes. It never fails; a bare identifier is returned as is.
func ExtractID(ref string) string {
	s := strings.TrimSpace(ref)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, `\`, "")
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// ReadReferences reads one reference per line. Blank lines and lines starting
// with '#' are skipped.
func ReadReferences(r io.Reader) ([]string, error) {
	var refs []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}
