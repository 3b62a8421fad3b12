package convertapi

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Vendor extensions carrying converter metadata
const (
	SourceFormatsExtension = "x-ca-source-formats"
	LabelExtension         = "x-ca-label"
)

// ConverterMetadata describes a converter for building upload forms
type ConverterMetadata struct {
	Title   string
	Summary string
	// AcceptsFormats holds dotted extensions, deduplicated and sorted case-insensitively
	AcceptsFormats  []string
	AcceptsMultiple bool
	Parameters      *ParameterLabels
}

// Accept renders AcceptsFormats for an HTML accept attribute, e.g. ".doc,.docx"
func (m *ConverterMetadata) Accept() string {
	return strings.Join(m.AcceptsFormats, ",")
}

// ParameterLabels maps parameter names to display labels with case-insensitive lookup
type ParameterLabels struct {
	order  []string
	labels map[string]parameterLabel
}

type parameterLabel struct {
	name  string
	label string
}

func newParameterLabels() *ParameterLabels {
	return &ParameterLabels{labels: make(map[string]parameterLabel)}
}

func foldKey(s string) string {
	return cases.Fold().String(s)
}

func (p *ParameterLabels) set(name, label string) {
	key := foldKey(name)
	if _, ok := p.labels[key]; !ok {
		p.order = append(p.order, key)
	}
	p.labels[key] = parameterLabel{name: name, label: label}
}

// Label returns the display label for name
func (p *ParameterLabels) Label(name string) (string, bool) {
	l, ok := p.labels[foldKey(name)]
	return l.label, ok
}

// Has reports whether name is a known plain parameter
func (p *ParameterLabels) Has(name string) bool {
	_, ok := p.labels[foldKey(name)]
	return ok
}

// Names returns the parameter names in document order
func (p *ParameterLabels) Names() []string {
	out := make([]string, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.labels[key].name)
	}
	return out
}

// Len returns the number of parameters
func (p *ParameterLabels) Len() int {
	return len(p.order)
}

// NormalizeFormats splits a comma separated extension list, trims it, drops
// blanks, prefixes a dot, deduplicates and sorts case-insensitively.
func NormalizeFormats(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		key := foldKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return foldKey(out[i]) < foldKey(out[j])
	})
	return out
}

// ConverterInfo fetches the OpenAPI description of the src→dst converter and
// derives its metadata. Discovery failures fall back from the converter specific
// document to the global one; a found document missing the converter is an error.
func (c *Client) ConverterInfo(ctx context.Context, src, dst string) (*ConverterMetadata, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &InvalidArgumentError{Name: "src", Reason: "source format must not be blank"}
	}
	if strings.TrimSpace(dst) == "" {
		return nil, &InvalidArgumentError{Name: "dst", Reason: "destination format must not be blank"}
	}

	endpoint := strings.Trim(strings.Trim(strings.TrimSpace(src), "/")+"/to/"+strings.Trim(strings.TrimSpace(dst), "/"), "/")

	doc := c.fetchSchema(ctx, "info/openapi/"+endpoint)
	if doc == nil {
		doc = c.fetchSchema(ctx, "info/openapi")
	}
	if doc == nil {
		return nil, &SchemaUnavailableError{Endpoint: endpoint}
	}

	pathKey := "/convert/" + endpoint
	item := doc.path(pathKey)
	if item == nil {
		return nil, &ConverterNotFoundError{Path: pathKey}
	}
	op := item.Post
	if op == nil {
		return nil, &OperationNotSupportedError{Path: pathKey, Operation: "POST"}
	}

	model := &ConverterMetadata{
		Title:      firstNonBlank(item.Summary, op.Summary, pathKey),
		Summary:    firstNonBlank(item.Description, op.Description),
		Parameters: newParameterLabels(),
	}

	// operation level wins over path level
	model.AcceptsFormats = NormalizeFormats(op.Extensions.text(SourceFormatsExtension))
	if len(model.AcceptsFormats) == 0 {
		model.AcceptsFormats = NormalizeFormats(item.Extensions.text(SourceFormatsExtension))
	}

	var propertyFormats []string
	if op.RequestBody != nil {
		for _, contentType := range op.RequestBody.Content.keys {
			body := doc.resolve(op.RequestBody.Content.values[contentType].Schema)
			if body == nil {
				continue
			}
			for _, name := range body.Properties.keys {
				prop := doc.resolve(body.Properties.values[name])
				if prop == nil {
					continue
				}
				if len(propertyFormats) == 0 {
					propertyFormats = NormalizeFormats(prop.Extensions.text(SourceFormatsExtension))
				}

				isBinary := strings.EqualFold(prop.Format, "binary")
				items := doc.resolve(prop.Items)
				isFilesArray := strings.EqualFold(string(prop.Type), "array") && items != nil && strings.EqualFold(items.Format, "binary")
				if isFilesArray && strings.EqualFold(name, "files") {
					model.AcceptsMultiple = true
				}
				if isBinary || isFilesArray {
					continue
				}

				label := strings.TrimSpace(prop.Extensions.text(LabelExtension))
				if label == "" {
					label = name
				}
				model.Parameters.set(name, label)
			}
		}
	}
	if len(model.AcceptsFormats) == 0 {
		model.AcceptsFormats = propertyFormats
	}

	if len(model.AcceptsFormats) == 0 {
		from := strings.Trim(strings.TrimSpace(src), ".")
		if from != "" && from != WildcardFormat {
			model.AcceptsFormats = []string{"." + strings.ToLower(from)}
		}
	}

	return model, nil
}

// fetchSchema returns nil on any failure so the caller can try the next source
func (c *Client) fetchSchema(ctx context.Context, path string) *schemaDocument {
	uri := c.endpoint(path)
	resp, err := c.transport.Get(ctx, uri, c.cfg.DownloadTimeout(), c.token)
	if err != nil {
		c.logger.SchemaLog("Fetching %s failed: %v", uri, err)
		return nil
	}
	body, err := resp.ReadAll()
	if err != nil {
		c.logger.SchemaLog("Reading %s failed: %v", uri, err)
		return nil
	}
	if !resp.IsSuccess() {
		c.logger.SchemaLog("Fetching %s returned %d", uri, resp.StatusCode)
		return nil
	}
	doc, err := parseSchemaDocument(body)
	if err != nil {
		c.logger.SchemaLog("Parsing %s failed: %v", uri, err)
		return nil
	}
	c.logger.SchemaLog("Using OpenAPI document from %s", uri)
	return doc
}

// path looks the converter up exactly first, then ignoring case in sorted key order
func (d *schemaDocument) path(key string) *pathItem {
	if item := d.Paths[key]; item != nil {
		return item
	}
	keys := make([]string, 0, len(d.Paths))
	for k := range d.Paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if item := d.Paths[k]; item != nil && strings.EqualFold(k, key) {
			return item
		}
	}
	return nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
