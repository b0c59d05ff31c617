package humastar

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links maps operation paths to their RFC 8288 Link header values.
type Links map[string][]string

// Transformer returns a Huma Transformer that injects the Link headers of
// the current operation. Parameterised paths also get a self link.
func (l Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l[op.Path] {
			ctx.AppendHeader("Link", link)
		}
		u := ctx.URL()
		if strings.Contains(op.Path, "{") || u.RawQuery != "" {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, u.RequestURI()))
		}
		return v, nil
	}
}

// Document copies the links into the OpenAPI success responses. Call after
// all routes are registered.
func (l Links) Document(api huma.API) {
	for p, pi := range api.OpenAPI().Paths {
		headers := l[p]
		if len(headers) == 0 {
			continue
		}
		for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
