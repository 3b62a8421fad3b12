package convertapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultFileParamName is the form field used by single-input converters
const DefaultFileParamName = "File"

// Parameter is one conversion input. The set of implementations is closed:
// *Param for scalar values and *FileParam for files.
type Parameter interface {
	Name() string
	// resolve turns the parameter into the values written to the request.
	// File parameters may upload here.
	resolve(ctx context.Context, c *Client) ([]Value, error)
}

// Param is a scalar parameter. Several values make an array parameter.
type Param struct {
	name   string
	values []string
}

// NewParam creates a scalar parameter
func NewParam(name string, values ...string) *Param {
	return &Param{name: name, values: values}
}

// Name returns the form field name
func (p *Param) Name() string { return p.name }

// Values returns the literal values in order
func (p *Param) Values() []string {
	out := make([]string, len(p.values))
	copy(out, p.values)
	return out
}

func (p *Param) resolve(context.Context, *Client) ([]Value, error) {
	out := make([]Value, 0, len(p.values))
	for _, v := range p.values {
		out = append(out, Literal(v))
	}
	return out, nil
}

// FileParam is a file input: a local file or reader uploaded lazily at most
// once, or a reference to a file the service can already reach.
type FileParam struct {
	name string

	// local source, uploaded on first use
	path     string
	reader   io.Reader
	fileName string

	// remote reference, sent as-is
	references []string

	gate     singleflight.Group
	mu       sync.Mutex
	uploaded *UploadedFile
	attempts int
}

// NewFileParam uploads the local file at path under the default "File" field
func NewFileParam(path string) *FileParam {
	return NewNamedFileParam(DefaultFileParamName, path)
}

// NewNamedFileParam uploads the local file at path under the given field name
func NewNamedFileParam(name, path string) *FileParam {
	return &FileParam{name: name, path: path, fileName: filepath.Base(path)}
}

// NewReaderFileParam uploads the content of r as fileName. A reader that also
// implements io.Seeker is rewound before a retried upload; any other reader
// can only be attempted once.
func NewReaderFileParam(name, fileName string, r io.Reader) *FileParam {
	return &FileParam{name: name, reader: r, fileName: fileName}
}

// NewURLFileParam references a file by absolute URL; the service fetches it itself
func NewURLFileParam(name, rawURL string) *FileParam {
	return &FileParam{name: name, references: []string{rawURL}}
}

// NewUploadedFileParam reuses a file already held by the service, e.g. a
// result of an earlier conversion
func NewUploadedFileParam(name string, f UploadedFile) *FileParam {
	ref := f.URL
	if ref == "" {
		ref = f.FileID
	}
	return &FileParam{name: name, references: []string{ref}}
}

// Name returns the form field name
func (p *FileParam) Name() string { return p.name }

// IsReference reports whether the parameter designates a remote file and never uploads
func (p *FileParam) IsReference() bool {
	return p.path == "" && p.reader == nil
}

// Values returns the literal references of a remote parameter
func (p *FileParam) Values() []string {
	out := make([]string, len(p.references))
	copy(out, p.references)
	return out
}

// Cached returns the memoized upload, or nil when nothing was uploaded yet
func (p *FileParam) Cached() *UploadedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploaded == nil {
		return nil
	}
	f := *p.uploaded
	return &f
}

// Upload sends the local file to the service the first time it is called and
// returns the memoized result afterwards. Concurrent first calls share a single
// upload; when the caller that started it is cancelled, a waiter still running
// takes the upload over. A failed or cancelled upload is not memoized, so a
// later call retries.
// Reference parameters return nil without error.
func (p *FileParam) Upload(ctx context.Context, c *Client) (*UploadedFile, error) {
	if p.IsReference() {
		return nil, nil
	}
	if f := p.Cached(); f != nil {
		return f, nil
	}

	for {
		ch := p.gate.DoChan("upload", func() (interface{}, error) {
			if f := p.Cached(); f != nil {
				return f, nil
			}
			if err := p.rewind(); err != nil {
				return nil, err
			}
			f, err := c.upload(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return nil, &abandonedUploadError{err: err}
				}
				return nil, err
			}
			p.mu.Lock()
			p.uploaded = f
			p.mu.Unlock()
			return f, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			var abandoned *abandonedUploadError
			if errors.As(res.Err, &abandoned) {
				if ctx.Err() == nil {
					// the caller that started the upload went away, take over
					continue
				}
				return nil, abandoned.err
			}
			if res.Err != nil {
				return nil, res.Err
			}
			f := *res.Val.(*UploadedFile)
			return &f, nil
		}
	}
}

// abandonedUploadError marks an upload cut short by the context of the caller
// that started it, not by the service
type abandonedUploadError struct {
	err error
}

func (e *abandonedUploadError) Error() string { return e.err.Error() }

func (e *abandonedUploadError) Unwrap() error { return e.err }

// rewind prepares the reader source for another attempt
func (p *FileParam) rewind() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts == 1 || p.reader == nil {
		return nil
	}
	seeker, ok := p.reader.(io.Seeker)
	if !ok {
		return fmt.Errorf("cannot retry upload of %s: reader is not seekable", p.fileName)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", p.fileName, err)
	}
	return nil
}

func (p *FileParam) resolve(ctx context.Context, c *Client) ([]Value, error) {
	f, err := p.Upload(ctx, c)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return []Value{File(f)}, nil
	}
	out := make([]Value, 0, len(p.references))
	for _, ref := range p.references {
		out = append(out, Reference(ref))
	}
	return out, nil
}
