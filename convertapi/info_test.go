package convertapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxToPdfSchema = `{
  "openapi": "3.0.1",
  "paths": {
    "/convert/docx/to/pdf": {
      "summary": "DOCX to PDF",
      "description": "Convert Word documents to PDF.",
      "post": {
        "requestBody": {
          "content": {
            "multipart/form-data": {
              "schema": {
                "type": "object",
                "properties": {
                  "File": {
                    "type": "string",
                    "format": "binary",
                    "x-ca-source-formats": "docx, doc"
                  },
                  "PageRange": {
                    "type": "string",
                    "x-ca-label": "Page range"
                  },
                  "Timeout": {
                    "type": "integer"
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

const mergeSchema = `
openapi: 3.1.0
paths:
  /convert/pdf/to/merge:
    x-ca-source-formats: pdf
    post:
      summary: Merge PDF
      x-ca-source-formats: [pdf, PDF, jpg, 42]
      requestBody:
        content:
          multipart/form-data:
            schema:
              $ref: '#/components/schemas/MergeRequest'
components:
  schemas:
    MergeRequest:
      type: object
      properties:
        Files:
          type: array
          items:
            $ref: '#/components/schemas/Binary'
        StoreFile:
          type: [boolean, "null"]
          x-ca-label: Store result
    Binary:
      type: string
      format: binary
`

func TestConverterInfoPropertyFormats(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi/docx/to/pdf", docxToPdfSchema)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "docx", "pdf")
	require.NoError(t, err)

	assert.Equal(t, "DOCX to PDF", info.Title)
	assert.Equal(t, "Convert Word documents to PDF.", info.Summary)
	assert.Equal(t, []string{".doc", ".docx"}, info.AcceptsFormats)
	assert.Equal(t, ".doc,.docx", info.Accept())
	assert.False(t, info.AcceptsMultiple)

	assert.Equal(t, []string{"PageRange", "Timeout"}, info.Parameters.Names())
	assert.False(t, info.Parameters.Has("File"))
	label, ok := info.Parameters.Label("pagerange")
	assert.True(t, ok)
	assert.Equal(t, "Page range", label)
	label, _ = info.Parameters.Label("Timeout")
	assert.Equal(t, "Timeout", label)
}

func TestConverterInfoOperationLevelWinsAndMultipleFiles(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi/pdf/to/merge", mergeSchema)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "pdf", "merge")
	require.NoError(t, err)

	assert.Equal(t, "Merge PDF", info.Title)
	assert.Empty(t, info.Summary)
	assert.Equal(t, []string{".jpg", ".pdf"}, info.AcceptsFormats)
	assert.True(t, info.AcceptsMultiple)
	assert.False(t, info.Parameters.Has("files"))
	label, ok := info.Parameters.Label("StoreFile")
	assert.True(t, ok)
	assert.Equal(t, "Store result", label)
	assert.Equal(t, 1, info.Parameters.Len())
}

func TestConverterInfoPathLevelFormats(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi", `
paths:
  /convert/html/to/pdf:
    x-ca-source-formats: "htm,html"
    post:
      summary: HTML to PDF
`)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "html", "pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{".htm", ".html"}, info.AcceptsFormats)
	assert.Equal(t, "HTML to PDF", info.Title)
	assert.Zero(t, info.Parameters.Len())
}

func TestConverterInfoFallsBackToGlobalDocument(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi/xlsx/to/pdf", "{not: [valid")
	fs.setSchema("/info/openapi", `{"paths": {"/convert/XLSX/to/PDF": {"post": {}}}}`)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "xlsx", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "/convert/xlsx/to/pdf", info.Title)
	assert.Equal(t, []string{".xlsx"}, info.AcceptsFormats)
}

func TestConverterInfoWildcardHasNoFallbackFormat(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi", `{"paths": {"/convert/*/to/zip": {"post": {"summary": "Archive"}}}}`)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "*", "zip")
	require.NoError(t, err)
	assert.Empty(t, info.AcceptsFormats)
	assert.Empty(t, info.Accept())
}

func TestConverterInfoErrors(t *testing.T) {
	fs := newFakeService(t)
	c := fs.client(t)
	ctx := context.Background()

	_, err := c.ConverterInfo(ctx, "docx", "pdf")
	assert.True(t, IsSchemaUnavailable(err))

	fs.setSchema("/info/openapi", `{"paths": {"/convert/docx/to/pdf": {"get": {}}}}`)
	_, err = c.ConverterInfo(ctx, "docx", "pdf")
	assert.True(t, IsOperationNotSupported(err))

	_, err = c.ConverterInfo(ctx, "pptx", "pdf")
	assert.True(t, IsConverterNotFound(err))

	_, err = c.ConverterInfo(ctx, " ", "pdf")
	assert.True(t, IsInvalidArgument(err))
	_, err = c.ConverterInfo(ctx, "docx", "")
	assert.True(t, IsInvalidArgument(err))
}

func TestNormalizeFormats(t *testing.T) {
	assert.Equal(t, []string{".doc", ".docx"}, NormalizeFormats(" docx, doc ,,DOC"))
	assert.Equal(t, []string{".jpg", ".PNG", ".tif"}, NormalizeFormats("tif,.PNG,jpg,png"))
	assert.Nil(t, NormalizeFormats(""))
	assert.Nil(t, NormalizeFormats(" , "))

	once := NormalizeFormats("pdf, Docx, doc")
	assert.Equal(t, once, NormalizeFormats(".doc,.Docx,.pdf"))
	assert.Equal(t, once, NormalizeFormats(joinFormats(once)))
}

func joinFormats(formats []string) string {
	return (&ConverterMetadata{AcceptsFormats: formats}).Accept()
}

func TestExtensionDecoding(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`
paths:
  /a:
    x-text: "a, b"
    x-list: [a, 1, " ", b]
    x-number: 3
    x-object: {k: v}
`))
	require.NoError(t, err)
	ext := doc.Paths["/a"].Extensions

	assert.Equal(t, StringExtension, ext["x-text"].Kind)
	assert.Equal(t, "a, b", ext.text("x-text"))
	assert.Equal(t, ArrayExtension, ext["x-list"].Kind)
	assert.Equal(t, "a,b", ext.text("x-list"))
	assert.Equal(t, UnknownExtension, ext["x-number"].Kind)
	assert.Empty(t, ext.text("x-number"))
	assert.Equal(t, UnknownExtension, ext["x-object"].Kind)
	assert.Empty(t, ext.text("x-missing"))
}

func TestSchemaRefResolution(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`
components:
  schemas:
    A: {$ref: '#/components/schemas/B'}
    B: {type: string, format: binary}
    Loop: {$ref: '#/components/schemas/Loop'}
`))
	require.NoError(t, err)

	resolved := doc.resolve(&schema{Ref: "#/components/schemas/A"})
	require.NotNil(t, resolved)
	assert.Equal(t, "binary", resolved.Format)

	assert.Nil(t, doc.resolve(&schema{Ref: "#/components/schemas/Missing"}))
	assert.Nil(t, doc.resolve(&schema{Ref: "other.yaml#/x"}))
	assert.Nil(t, doc.resolve(&schema{Ref: "#/components/schemas/Loop"}))
	assert.Nil(t, doc.resolve(nil))
}

func TestParseSchemaDocumentAcceptsJSONEscapes(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`{"paths": {"\/convert\/docx\/to\/pdf": {"post": {"summary": "Word → PDF"}}}}`))
	require.NoError(t, err)

	item := doc.path("/convert/docx/to/pdf")
	require.NotNil(t, item)
	require.NotNil(t, item.Post)
	assert.Equal(t, "Word → PDF", item.Post.Summary)
}

func TestParseSchemaDocumentKeepsJSONPropertyOrder(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`{
		"paths": {"\/convert\/a\/to\/b": {"post": {"requestBody": {"content": {"multipart\/form-data": {"schema": {
			"type": ["object", null],
			"properties": {"Zeta": {"type": "string"}, "Alpha": {"type": "integer", "default": 1.5}, "Mid": {"type": "boolean", "nullable": true}}
		}}}}}}}
	}`))
	require.NoError(t, err)

	body := doc.path("/convert/a/to/b").Post.RequestBody.Content.values["multipart/form-data"].Schema
	require.NotNil(t, body)
	assert.Equal(t, schemaType("object"), body.Type)
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, body.Properties.keys)
}

func TestParseSchemaDocumentRejectsBrokenJSON(t *testing.T) {
	_, err := parseSchemaDocument([]byte(`{"paths": {"\/a": }`))
	assert.Error(t, err)
}

func TestParseSchemaDocumentYAMLFlowMapping(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`{paths: {/convert/a/to/b: {post: {summary: flow}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "flow", doc.path("/convert/a/to/b").Post.Summary)
}

func TestConverterInfoEscapedJSONDocument(t *testing.T) {
	fs := newFakeService(t)
	fs.setSchema("/info/openapi/docx/to/pdf",
		`{"paths": {"\/convert\/docx\/to\/pdf": {"post": {"summary": "Word to PDF", "x-ca-source-formats": "docx, doc"}}}}`)
	c := fs.client(t)

	info, err := c.ConverterInfo(context.Background(), "docx", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "Word to PDF", info.Title)
	assert.Equal(t, ".doc,.docx", info.Accept())
}

func TestSchemaPathCaseInsensitiveLookupIsStable(t *testing.T) {
	doc, err := parseSchemaDocument([]byte(`{"paths": {
		"/Convert/docx/to/pdf": {"summary": "mixed"},
		"/CONVERT/docx/to/pdf": {"summary": "upper"}
	}}`))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		item := doc.path("/convert/docx/to/pdf")
		require.NotNil(t, item)
		assert.Equal(t, "upper", item.Summary)
	}
}
