package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyBlobPackageImportsInfra ensures callers depend on blob.Store and
// never import a concrete archive driver directly.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	const infraPrefix = "duesdesk/internal/infra/blob"
	const allowedPrefix = "duesdesk/internal/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "duesdesk/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var violations []string
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) || strings.HasPrefix(pkg.PkgPath, infraPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == infraPrefix || strings.HasPrefix(importPath, infraPrefix+"/") {
				violations = append(violations, pkg.PkgPath+": "+importPath)
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of infra blob package: %s", v)
	}
}
