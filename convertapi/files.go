package convertapi

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// fileSet keeps the first file seen per identity, in insertion order
type fileSet struct {
	seen  map[string]struct{}
	files []UploadedFile
}

func newFileSet() *fileSet {
	return &fileSet{seen: make(map[string]struct{})}
}

// add reports whether f was new. Files with no identity are dropped.
func (s *fileSet) add(f UploadedFile) bool {
	key := f.identity()
	if key == "" {
		return false
	}
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	s.files = append(s.files, f)
	return true
}

// fileURL is the address a file is downloaded from and deleted at
func (c *Client) fileURL(f UploadedFile) string {
	if f.URL != "" {
		return f.URL
	}
	if f.FileID != "" {
		return c.endpoint("d/" + url.PathEscape(f.FileID))
	}
	return ""
}

// FileStream opens the content of a service file. The caller must close it.
func (c *Client) FileStream(ctx context.Context, f UploadedFile) (io.ReadCloser, error) {
	uri := c.fileURL(f)
	if uri == "" {
		return nil, &InvalidArgumentError{Name: "file", Reason: "has neither Url nor FileId"}
	}

	resp, err := c.transport.Get(ctx, uri, c.cfg.DownloadTimeout(), "")
	if err != nil {
		return nil, fmt.Errorf("download of %s failed: %w", f.FileName, err)
	}
	if !resp.IsSuccess() {
		body, _ := resp.ReadAll()
		return nil, &ConversionError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Download of %s error. %s", f.FileName, resp.Reason),
			Body:       string(body),
		}
	}
	return resp.Body, nil
}

// SaveFile downloads f into destPath, creating or truncating it, and returns the path
func (c *Client) SaveFile(ctx context.Context, f UploadedFile, destPath string) (string, error) {
	stream, err := c.FileStream(ctx, f)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, stream); err != nil {
		out.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", destPath, err)
	}

	c.logger.DebugLog("Saved %s to %s", f.FileName, destPath)
	return destPath, nil
}

// SaveFiles saves each file into dir under its reported name. It stops at the
// first failure and returns the paths saved before it alongside the error.
func (c *Client) SaveFiles(ctx context.Context, files []UploadedFile, dir string) ([]string, error) {
	saved := make([]string, 0, len(files))
	for i, f := range files {
		name := filepath.Base(f.FileName)
		if name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("file-%d.%s", i+1, f.FileExt)
		}
		path, err := c.SaveFile(ctx, f, filepath.Join(dir, name))
		if err != nil {
			return saved, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

// SaveFirstFile saves the first result file of resp to destPath
func (c *Client) SaveFirstFile(ctx context.Context, resp *ConversionResponse, destPath string) (string, error) {
	if resp.FileCount() == 0 {
		return "", &InvalidArgumentError{Name: "response", Reason: "contains no files"}
	}
	return c.SaveFile(ctx, resp.Files[0], destPath)
}

// DeleteFiles deletes each file from the service and returns how many deletions
// succeeded. Failures are logged and skipped; the service drops files after
// three hours anyway.
func (c *Client) DeleteFiles(ctx context.Context, files []UploadedFile) int {
	deleted := 0
	for _, f := range files {
		uri := c.fileURL(f)
		if uri == "" {
			c.logger.WarningLog("Skipping file %q without Url or FileId", f.FileName)
			continue
		}
		resp, err := c.transport.Delete(ctx, uri)
		if err != nil {
			c.logger.WarningLog("Delete of %s failed: %v", uri, err)
			continue
		}
		_, _ = resp.ReadAll()
		if !resp.IsSuccess() {
			c.logger.WarningLog("Delete of %s returned %d", uri, resp.StatusCode)
			continue
		}
		deleted++
	}
	c.logger.DeleteLog("Deleted %d of %d file(s)", deleted, len(files))
	return deleted
}

// DeleteAll deletes the result files of resp and the inputs tracked for the
// request it answers. Each file is targeted once even if it appears in both.
func (c *Client) DeleteAll(ctx context.Context, resp *ConversionResponse) int {
	set := newFileSet()
	if resp != nil {
		for _, f := range resp.Files {
			set.add(f)
		}
		for _, f := range resp.UploadedInputFiles {
			set.add(f)
		}
	}
	return c.DeleteFiles(ctx, set.files)
}

// DeleteAllWithParams deletes the result files of resp and the files uploaded
// by params. Only memoized uploads are considered; nothing is uploaded here.
func (c *Client) DeleteAllWithParams(ctx context.Context, resp *ConversionResponse, params ...Parameter) int {
	set := newFileSet()
	if resp != nil {
		for _, f := range resp.Files {
			set.add(f)
		}
	}
	for _, p := range params {
		if fp, ok := p.(*FileParam); ok {
			if f := fp.Cached(); f != nil {
				set.add(*f)
			}
		}
	}
	return c.DeleteFiles(ctx, set.files)
}
