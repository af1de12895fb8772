// Генерация документации об ошибках API в формате Markdown.
//
// Разбирает файл с определениями DefinedError и строит документ с таблицами по группам кодов:
// код, HTTP статус, имя переменной, сообщение и перевод на русский.
// Повторяющиеся коды считаются ошибкой и прерывают генерацию.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	md "github.com/nao1215/markdown"
)

var groupNames = map[int]string{
	1: "Авторизация и сессии",
	2: "Шаблоны",
	3: "Заполненные формы",
	4: "Комментарии и лайки",
	5: "Валидация и общие ошибки",
	6: "Пользователи",
	7: "Интеграции",
}

type errorDoc struct {
	Name       string
	Code       int
	StatusName string
	Err        string
	RuErr      string
}

func (d errorDoc) group() int {
	return d.Code / 1000
}

func main() {
	errorsFile := flag.String("src", "internal/aiforms/apierrors/apierrors.go", "Path of apierrors.go")
	outputMd := flag.String("out", "api_error.md", "Path to output md")
	flag.Parse()

	slog.Info("Generate api errors docs", "src", *errorsFile, "out", *outputMd)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, *errorsFile, nil, 0)
	if err != nil {
		slog.Error("Parse errors file", "err", err)
		os.Exit(1)
	}

	docs, err := collectErrors(f)
	if err != nil {
		slog.Error("Collect errors", "err", err)
		os.Exit(1)
	}

	out, err := os.Create(*outputMd)
	if err != nil {
		slog.Error("Create output", "err", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := render(out, docs); err != nil {
		slog.Error("Generate docs fail", "err", err)
		os.Exit(1)
	}
	slog.Info("Docs generated", "errors", len(docs))
}

// collectErrors извлекает из файла все переменные вида X = DefinedError{...}
func collectErrors(f *ast.File) ([]errorDoc, error) {
	var docs []errorDoc
	seen := map[int]string{}

	for _, d := range f.Decls {
		decl, ok := d.(*ast.GenDecl)
		if !ok || decl.Tok != token.VAR {
			continue
		}
		for _, spec := range decl.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, id := range vs.Names {
				if i >= len(vs.Values) {
					break
				}
				lit, ok := vs.Values[i].(*ast.CompositeLit)
				if !ok || fmt.Sprint(lit.Type) != "DefinedError" {
					continue
				}

				doc := errorDoc{Name: id.Name, StatusName: "StatusBadRequest"}
				for _, elt := range lit.Elts {
					kv, ok := elt.(*ast.KeyValueExpr)
					if !ok {
						continue
					}
					switch fmt.Sprint(kv.Key) {
					case "Code":
						code, err := strconv.Atoi(literal(kv.Value))
						if err != nil {
							return nil, fmt.Errorf("%s: bad code: %w", id.Name, err)
						}
						doc.Code = code
					case "StatusCode":
						if sel, ok := kv.Value.(*ast.SelectorExpr); ok {
							doc.StatusName = sel.Sel.Name
						}
					case "Err":
						doc.Err = literal(kv.Value)
					case "RuErr":
						doc.RuErr = literal(kv.Value)
					}
				}

				if prev, dup := seen[doc.Code]; dup {
					return nil, fmt.Errorf("code %d is used by both %s and %s", doc.Code, prev, doc.Name)
				}
				seen[doc.Code] = doc.Name
				docs = append(docs, doc)
			}
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Code < docs[j].Code })
	return docs, nil
}

// literal возвращает значение строкового или числового литерала, конкатенация строк склеивается
func literal(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			if s, err := strconv.Unquote(e.Value); err == nil {
				return s
			}
		}
		return e.Value
	case *ast.BinaryExpr:
		return literal(e.X) + literal(e.Y)
	case *ast.ParenExpr:
		return literal(e.X)
	}
	return ""
}

func statusCode(name string) int {
	if code, ok := httpStatuses[name]; ok {
		return code
	}
	return 0
}

// Статусы, встречающиеся в ошибках API
var httpStatuses = map[string]int{
	"StatusBadRequest":            http.StatusBadRequest,
	"StatusUnauthorized":          http.StatusUnauthorized,
	"StatusPaymentRequired":       http.StatusPaymentRequired,
	"StatusForbidden":             http.StatusForbidden,
	"StatusNotFound":              http.StatusNotFound,
	"StatusConflict":              http.StatusConflict,
	"StatusRequestEntityTooLarge": http.StatusRequestEntityTooLarge,
	"StatusUnprocessableEntity":   http.StatusUnprocessableEntity,
	"StatusTooManyRequests":       http.StatusTooManyRequests,
	"StatusInternalServerError":   http.StatusInternalServerError,
	"StatusBadGateway":            http.StatusBadGateway,
	"StatusServiceUnavailable":    http.StatusServiceUnavailable,
}

func render(w io.Writer, docs []errorDoc) error {
	doc := md.NewMarkdown(w).
		H1("Перечень кодов ошибок").
		PlainText("Данный раздел посвящен описанию возможных ошибок от сервера. " +
			"Тело ответа с ошибкой содержит поля code, error и ru_error.")

	for _, group := range groups(docs) {
		name := groupNames[group[0].group()]
		if name == "" {
			name = fmt.Sprintf("%d***", group[0].group())
		}
		doc = doc.H2(name)

		rows := make([][]string, 0, len(group))
		for _, d := range group {
			status := d.StatusName
			if code := statusCode(d.StatusName); code != 0 {
				status = fmt.Sprintf("%d %s", code, md.Italic(d.StatusName))
			}
			rows = append(rows, []string{
				md.Bold(strconv.Itoa(d.Code)),
				status,
				md.Code(d.Name),
				md.Code(d.Err),
				escapeCell(d.RuErr),
			})
		}
		doc = doc.CustomTable(md.TableSet{
			Header: []string{"Код", "HTTP код", "Имя", "Сообщение", "Сообщение на русском"},
			Rows:   rows,
		}, md.TableOptions{AutoWrapText: false})
	}
	return doc.Build()
}

func groups(docs []errorDoc) [][]errorDoc {
	var out [][]errorDoc
	for _, d := range docs {
		if n := len(out); n > 0 && out[n-1][0].group() == d.group() {
			out[n-1] = append(out[n-1], d)
			continue
		}
		out = append(out, []errorDoc{d})
	}
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
