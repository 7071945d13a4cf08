package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ojalaai/ojala/pkg/media"
)

// splitPaths splits a line into paths the way a shell would: quotes and
// backslash escapes keep spaces inside a path, whitespace separates paths.
func splitPaths(line string) ([]string, error) {
	var (
		paths   []string
		current strings.Builder
		quote   rune
		escaped bool
		inToken bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				paths = append(paths, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if escaped {
		current.WriteRune('\\')
	}
	if inToken {
		paths = append(paths, current.String())
	}
	return paths, nil
}

// normalizePath expands ~ and file:// URIs as terminals produce them on drop.
func normalizePath(p string) string {
	if strings.HasPrefix(p, "file://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// droppedFiles reports whether line consists only of paths to existing
// regular files, which is what a terminal types when files are dropped on it.
func droppedFiles(line string) ([]string, bool) {
	tokens, err := splitPaths(strings.TrimSpace(line))
	if err != nil || len(tokens) == 0 {
		return nil, false
	}

	paths := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		p := normalizePath(tok)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		paths = append(paths, p)
	}
	return paths, true
}

// openSources opens every path. Paths that cannot be opened are reported
// and skipped so the rest of the batch still goes through.
func openSources(paths []string) ([]media.Source, []error) {
	var (
		sources []media.Source
		errs    []error
	)
	for _, p := range paths {
		src, err := media.FromPath(normalizePath(p))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, errs
}
