// Package testutil holds test helpers that enforce package boundaries:
// pkg/domain stays free of internal packages and internal/core stays free of
// transport and presentation libraries.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Predicate reports whether an import path is forbidden.
type Predicate func(importPath string) bool

// AssertNoDirectImports parses every non-test .go file in dir and fails when
// an import matches forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden Predicate, reason string) {
	t.Helper()
	viols, err := DirectImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// DirectImportViolations lists "<import> (in <file>)" for each forbidden
// import, sorted.
func DirectImportViolations(dir string, forbidden Predicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}

// InternalImport matches any path under an internal/ directory.
func InternalImport(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// TransportImport matches HTTP frameworks, metric exposition handlers and the
// console and report adapters.
func TransportImport(path string) bool {
	switch {
	case strings.HasPrefix(path, "github.com/gin-gonic/"):
		return true
	case path == "github.com/prometheus/client_golang/prometheus/promhttp":
		return true
	case strings.HasPrefix(path, "duesdesk/internal/adapters/"):
		return true
	}
	return false
}

// AnyOf combines predicates.
func AnyOf(preds ...Predicate) Predicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}
