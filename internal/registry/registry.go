// Package registry resolves the declarative list of runner base URLs from
// configuration and from a runners file.
package registry

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"runnerd/internal/common/fsutil"
)

// Parse validates and normalizes runner URLs. Blank entries are skipped;
// trailing slashes are dropped. Only http and https URLs with a host are
// accepted, and each URL may appear once.
func Parse(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("runner %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("runner %q: scheme must be http or https", raw)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("runner %q: missing host", raw)
		}
		norm := strings.TrimRight(raw, "/")
		if seen[norm] {
			return nil, fmt.Errorf("runner %q listed twice", norm)
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out, nil
}

// LoadFile reads one runner URL per line. Blank lines and text after '#'
// are ignored. A leading '~' in path expands to the home directory.
func LoadFile(path string) ([]string, error) {
	b, err := fsutil.ReadFile("runners file", path)
	if err != nil {
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read runners file: %w", err)
	}
	return Parse(lines)
}

// Resolve combines inline URLs with those from file (if set), inline first.
func Resolve(inline []string, file string) ([]string, error) {
	all := append([]string(nil), inline...)
	if file != "" {
		fromFile, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	out, err := Parse(all)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no runners configured")
	}
	return out, nil
}
