package upgrade

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/rules"
)

var (
	errMissingID  = errors.New("record id is required to build the request path")
	errMissingURL = errors.New("request has no url")
)

const idPlaceholder = "{{id}}"

// generic rewrites a module without a v2 counterpart into a raw API call.
func (w *work) generic() error {
	mapper := w.m.Mapper
	if mapper == nil {
		mapper = map[string]any{}
	}

	path := w.rule.URL
	method := w.rule.Method

	if strings.Contains(path, idPlaceholder) {
		id, ok := mapper["id"]
		if !ok || !present(id) {
			return errMissingID
		}

		path = strings.ReplaceAll(path, idPlaceholder, fmt.Sprint(id))
		delete(mapper, "id")
	}

	out := map[string]any{
		"url":    path,
		"method": method,
	}

	if hasBody(method) {
		body := make(map[string]any)

		for k, v := range w.m.Parameters {
			if !w.rules.IsTechnical(k) {
				body[k] = v
			}
		}

		for k, v := range mapper {
			body[k] = v
		}

		w.fixInputs(body, "mapper.body")
		w.regroup(body, "mapper.body", w.structuredHashes())

		text, err := blueprint.MarshalIndent(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}

		out["body"] = strings.TrimRight(string(text), "\n")
	}

	w.m.Mapper = out
	w.m.Parameters = map[string]any{}
	w.apiCallMetadata(path, method)

	w.m.Type = w.rules.APICall.Module
	w.m.Version = w.rules.APICall.Version
	w.setConnection()

	w.result.OutputRoot = &rules.RootRemap{To: "body.data"}

	return nil
}

// rawCall rewrites a raw request against the v1 API into a v2 raw API call.
func (w *work) rawCall() error {
	raw := requestURL(w.m)
	if raw == "" {
		return errMissingURL
	}

	path, query := w.normalizeURL(raw)
	w.checkNumericFieldPath(path)

	qs := append(w.listInput("qs"), query...)
	qs = w.fixQuery(dropByName(qs, w.rules.HTTP.DropQuery), "mapper.qs")

	headers := dropByName(w.listInput("headers"), w.rules.HTTP.DropHeaders)

	method := w.input("method")
	if method == nil || method == "" {
		method = http.MethodGet
	}

	if s, ok := method.(string); ok && !expr.HasTemplate(s) {
		method = strings.ToUpper(s)
	}

	body := w.input("body")
	if body == nil {
		body = w.input("data")
	}

	if body == nil {
		body = ""
	}

	w.m.Mapper = map[string]any{
		"url":     path,
		"method":  method,
		"headers": headers,
		"qs":      qs,
		"body":    body,
	}
	w.m.Parameters = map[string]any{}
	w.apiCallMetadata(path, method)

	w.m.Type = w.rules.APICall.Module
	w.m.Version = w.rules.APICall.Version
	w.setConnection()

	w.result.OutputRoot = w.rule.OutputRoot

	return nil
}

// input returns a request input, mapper first.
func (w *work) input(name string) any {
	if v, ok := w.m.Mapper[name]; ok && v != nil && v != "" {
		return v
	}

	return w.m.Parameters[name]
}

func (w *work) listInput(name string) []any {
	list, _ := blueprint.Array(w.input(name))

	return slices.Clone(list)
}

// normalizeURL turns a v1 URL into a v2 API path and the query items it
// carried inline.
func (w *work) normalizeURL(raw string) (string, []any) {
	cfg := w.rules.HTTP
	path := strings.TrimSpace(raw)

	if i := strings.Index(strings.ToLower(path), cfg.Host); i >= 0 {
		rest := path[i+len(cfg.Host):]

		path = "/"
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		}
	}

	var query []any

	if i := strings.IndexByte(path, '?'); i >= 0 {
		query = parseQuery(path[i+1:])
		path = path[:i]
	}

	for _, p := range cfg.StripPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			path = path[len(p):]

			break
		}
	}

	for _, key := range slices.Sorted(maps.Keys(cfg.PathRewrites)) {
		if strings.Contains(path, key) {
			path = cfg.PathRewrites[key]

			break
		}
	}

	if !strings.HasPrefix(path, "/v2/") {
		path = "/v2/" + strings.TrimLeft(path, "/")
	}

	return path, query
}

func parseQuery(q string) []any {
	var items []any

	for _, pair := range strings.Split(q, "&") {
		if pair == "" {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")

		if s, err := url.QueryUnescape(value); err == nil {
			value = s
		}

		items = append(items, map[string]any{"name": name, "value": value})
	}

	return items
}

func dropByName(items []any, names []string) []any {
	out := make([]any, 0, len(items))

	for _, item := range items {
		obj, ok := blueprint.Object(item)
		if !ok {
			continue
		}

		name, _ := obj["name"].(string)
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, name) }) {
			continue
		}

		out = append(out, obj)
	}

	return out
}

// checkNumericFieldPath warns about paths like /v2/dealFields/12, which v2
// cannot serve.
func (w *work) checkNumericFieldPath(path string) {
	for _, name := range w.rules.HTTP.NumericFieldPaths {
		_, rest, ok := strings.Cut(path, "/"+name+"/")
		if !ok {
			continue
		}

		seg, _, _ := strings.Cut(rest, "/")
		if _, isDigits := digits(seg); isDigits {
			w.diags.AddWarning(diagnostic.CodeNumericFieldID,
				fmt.Sprintf("%s addresses a field by legacy numeric id %s; replace it with the field key", path, seg),
				w.m.ID, "mapper.url")
		}
	}
}

// apiCallMetadata sets the declared schema and restore hints of a raw API
// call. Designer placement and unknown metadata are kept; the output schema
// is dropped because the response shape changed.
func (w *work) apiCallMetadata(path string, method any) {
	md := w.metadata()
	delete(md, "interface")

	md["expect"] = APICallExpect()
	md["restore"] = map[string]any{
		"expect": map[string]any{
			"url":    path,
			"method": method,
		},
	}
}

// APICallExpect returns the declared input schema of a raw API call.
func APICallExpect() []any {
	pair := []any{
		map[string]any{"name": "name", "type": "text", "label": "Name"},
		map[string]any{"name": "value", "type": "text", "label": "Value"},
	}

	return []any{
		map[string]any{"name": "url", "type": "text", "label": "URL", "required": true},
		map[string]any{
			"name": "method", "type": "select", "label": "Method", "required": true,
			"validate": map[string]any{"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
		},
		map[string]any{"name": "headers", "type": "array", "label": "Headers", "spec": pair},
		map[string]any{"name": "qs", "type": "array", "label": "Query String", "spec": blueprint.CloneValue(pair)},
		map[string]any{"name": "body", "type": "text", "label": "Body"},
	}
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut
}
