package server

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates static
var assets embed.FS

var templateFuncs = template.FuncMap{
	"dict": dict,
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("index.html").Funcs(templateFuncs).ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

// dict builds a map from alternating keys and values so a template can pass
// several values to a nested template.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[key] = kv[i+1]
	}
	return m, nil
}
