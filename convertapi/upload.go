package convertapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches the amount of data mimetype inspects by default
const sniffLen = 3072

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload uploads p (once) and returns its server-side handle
func (c *Client) Upload(ctx context.Context, p *FileParam) (*UploadedFile, error) {
	return p.Upload(ctx, c)
}

// upload streams the parameter's content to {baseUri}/upload as a multipart form
func (c *Client) upload(ctx context.Context, p *FileParam) (*UploadedFile, error) {
	src, err := p.open()
	if err != nil {
		return nil, err
	}

	buffered := bufio.NewReaderSize(src, sniffLen)
	head, _ := buffered.Peek(sniffLen)
	contentType := mimetype.Detect(head).String()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		defer src.Close()
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(p.fileName)))
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, buffered)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	c.logger.UploadLog("Uploading %s (%s)", p.fileName, contentType)
	resp, err := c.transport.Post(ctx, c.endpoint("upload"), c.cfg.UploadTimeout(), pr, form.FormDataContentType(), c.token)
	// unblocks the writer if the transport gave up before draining the pipe
	pr.Close()
	if err != nil {
		return nil, fmt.Errorf("upload of %s failed: %w", p.fileName, err)
	}

	body, err := resp.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &ConversionError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Upload of %s error. %s", p.fileName, resp.Reason),
			Body:       string(body),
		}
	}

	var uploaded UploadedFile
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if uploaded.FileName == "" {
		uploaded.FileName = p.fileName
	}
	if uploaded.FileExt == "" {
		uploaded.FileExt = strings.ToLower(strings.TrimPrefix(filepath.Ext(uploaded.FileName), "."))
	}

	c.logger.UploadLog("Uploaded %s as %s", uploaded.FileName, uploaded.FileID)
	return &uploaded, nil
}

// open returns the content to upload
func (p *FileParam) open() (io.ReadCloser, error) {
	if p.reader != nil {
		return io.NopCloser(p.reader), nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p.path, err)
	}
	return f, nil
}
