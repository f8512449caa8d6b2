// Package sqlaudit checks that every SQL string constant carries a unique
// "--sql <uuid>" marker, so slow-query logs can be traced back to source.
package sqlaudit

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

// Violation is one offending constant.
type Violation struct {
	File    string
	Line    int
	Name    string
	Message string
}

// Lint walks every target (files or directories) and reports constants whose
// marker is missing, malformed, or reused elsewhere in the scanned set.
// Test files and hidden or vendored directories are skipped.
func Lint(targets ...string) ([]Violation, error) {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := &linter{seen: make(map[string]Violation)}
	for _, target := range targets {
		err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return l.file(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return l.out, nil
}

type linter struct {
	seen map[string]Violation
	out  []Violation
}

func (l *linter) file(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			raw, err := unquote(lit.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			v := Violation{File: path, Line: fset.Position(lit.Pos()).Line, Name: valueName(spec, i)}
			m := markerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				v.Message = "missing or invalid --sql <uuid> marker"
				l.out = append(l.out, v)
				continue
			}
			if prev, dup := l.seen[m[1]]; dup {
				v.Message = "marker " + m[1] + " already used by " + prev.Name
				l.out = append(l.out, v)
				continue
			}
			l.seen[m[1]] = v
		}
		return true
	})
	return nil
}

func valueName(spec *ast.ValueSpec, i int) string {
	if i < len(spec.Names) && spec.Names[i] != nil {
		return spec.Names[i].Name
	}
	return "_"
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if v == "" {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
