// Command sqllint checks that every inline SQL constant starts with a
// unique "--sql <uuid>" marker. The SQL runner keys its query logs on that
// marker, so a missing or reused one makes the logs ambiguous.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter)\b`)
	markerPattern     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	pos     token.Position
	name    string
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.pos.Filename, v.pos.Line, v.message, v.name)
}

type linter struct {
	fset       *token.FileSet
	seen       map[string]token.Position
	violations []violation
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), seen: make(map[string]token.Position)}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.lintPath(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}
	if len(l.violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL marker violations")
		for _, v := range l.violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}

func (l *linter) lintPath(target string) error {
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return l.lintSource(path, src)
	})
}

func (l *linter) lintSource(path string, src []byte) error {
	file, err := parser.ParseFile(l.fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) {
				name = vs.Names[i].Name
			}
			l.check(l.fset.Position(bl.Pos()), name, raw)
		}
		return true
	})
	return nil
}

func (l *linter) check(pos token.Position, name, raw string) {
	m := markerPattern.FindStringSubmatch(firstLine(raw))
	if m == nil {
		l.violations = append(l.violations, violation{pos: pos, name: name, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	if prev, dup := l.seen[m[1]]; dup {
		l.violations = append(l.violations, violation{
			pos:     pos,
			name:    name,
			message: fmt.Sprintf("marker %s already used at %s:%d", m[1], prev.Filename, prev.Line),
		})
		return
	}
	l.seen[m[1]] = pos
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
