package convertapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"
)

// WildcardFormat as source format means "use the extension of the first uploaded file"
const WildcardFormat = "*"

// ignoredParameters are controlled by the client itself
var ignoredParameters = []string{"StoreFile", "Async", "JobId"}

// conversionRequest is a fully resolved, ready to send conversion
type conversionRequest struct {
	from        string
	to          string
	fields      *ParamDictionary
	body        []byte
	contentType string
	// timeout is zero when the caller gave no usable timeout parameter
	timeout  time.Duration
	uploaded []UploadedFile
}

func isIgnoredParameter(name string) bool {
	for _, ignored := range ignoredParameters {
		if strings.EqualFold(name, ignored) {
			return true
		}
	}
	return false
}

// buildRequest resolves params in order (uploading files as needed) and
// encodes them into the multipart body.
func (c *Client) buildRequest(ctx context.Context, from, to string, params []Parameter) (*conversionRequest, error) {
	fields := NewParamDictionary()
	tracked := newFileSet()

	for _, p := range params {
		if p == nil || isIgnoredParameter(p.Name()) {
			continue
		}
		values, err := p.resolve(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameter %s: %w", p.Name(), err)
		}
		for _, v := range values {
			fields.Add(p.Name(), v)
			switch v.Kind {
			case FileValue:
				tracked.add(*v.File)
			case ReferenceValue:
				// service-hosted references stay eligible for cleanup
				if c.isServiceURL(v.Literal) {
					tracked.add(UploadedFile{URL: strings.TrimSpace(v.Literal)})
				}
			}
		}
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("StoreFile", "true"); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	for _, e := range fields.Entries() {
		value := e.Value.Literal
		if e.Value.Kind == FileValue {
			value = e.Value.File.FileID
			if from == WildcardFormat && e.Value.File.FileExt != "" {
				from = e.Value.File.FileExt
			}
		}
		if err := form.WriteField(e.Name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", e.Name, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	return &conversionRequest{
		from:        from,
		to:          to,
		fields:      fields,
		body:        body.Bytes(),
		contentType: form.FormDataContentType(),
		timeout:     c.requestTimeout(fields),
		uploaded:    tracked.files,
	}, nil
}

// requestTimeout derives the network timeout from a "timeout" parameter (seconds)
// plus the safety delta. Absent or malformed values, or a sum that is not
// positive, yield zero.
func (c *Client) requestTimeout(fields *ParamDictionary) time.Duration {
	raw, ok := fields.Find("timeout")
	if !ok {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	timeout := time.Duration(seconds)*time.Second + c.cfg.ConversionTimeoutDelta()
	if timeout <= 0 {
		return 0
	}
	return timeout
}
