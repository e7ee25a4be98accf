package httpserver

import (
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<table>
<tr><th>Method</th><th>Path</th></tr>
{{range .Routes}}<tr><td>{{.Method}}</td><td>{{.Path}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type indexRoute struct {
	Method string
	Path   string
}

// Index lists the registered routes as an HTML page.
func Index(title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var routes []indexRoute
		for _, r := range c.Echo().Routes() {
			if r.Method == echo.RouteNotFound || strings.HasSuffix(r.Path, "*") {
				continue
			}
			routes = append(routes, indexRoute{Method: r.Method, Path: r.Path})
		}
		slices.SortFunc(routes, func(a, b indexRoute) int {
			if c := strings.Compare(a.Path, b.Path); c != 0 {
				return c
			}
			return strings.Compare(a.Method, b.Method)
		})

		var sb strings.Builder
		if err := indexTmpl.Execute(&sb, map[string]any{"Title": title, "Routes": routes}); err != nil {
			return err
		}
		return c.HTML(http.StatusOK, sb.String())
	}
}
