package convertapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// formField is one multipart field as the service received it
type formField struct {
	Name  string
	Value string
}

// fakeService mimics the ConvertAPI endpoints the client talks to
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	uploads        atomic.Int32
	uploadFailures atomic.Int32 // number of upcoming uploads answered with 500

	mu            sync.Mutex
	uploadDelay   time.Duration
	uploadedNames []string
	uploadedTypes []string
	convertPath   string
	convertForm   []formField
	convertStatus int
	convertBody   string
	deletes       []string
	deleteStatus  map[string]int
	schemas       map[string]string
	downloads     map[string]string
}

func newFakeService(t *testing.T) *fakeService {
	fs := &fakeService{
		t:            t,
		deleteStatus: make(map[string]int),
		schemas:      make(map[string]string),
		downloads:    make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", fs.handleUpload)
	mux.HandleFunc("/convert/", fs.handleConvert)
	mux.HandleFunc("/user", fs.handleUser)
	mux.HandleFunc("/info/openapi", fs.handleSchema)
	mux.HandleFunc("/info/openapi/", fs.handleSchema)
	mux.HandleFunc("/d/", fs.handleFile)
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeService) client(t *testing.T) *Client {
	c, err := NewClient("test-token", WithBaseURI(fs.srv.URL))
	require.NoError(t, err)
	return c
}

func (fs *fakeService) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, `{"Code":4010,"Message":"Unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (fs *fakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !fs.checkAuth(w, r) {
		return
	}
	fs.mu.Lock()
	delay := fs.uploadDelay
	fs.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fs.uploadFailures.Load() > 0 {
		fs.uploadFailures.Add(-1)
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, `{"Code":5000,"Message":"upload failed"}`, http.StatusInternalServerError)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	n := fs.uploads.Add(1)
	fs.mu.Lock()
	fs.uploadedNames = append(fs.uploadedNames, header.Filename)
	fs.uploadedTypes = append(fs.uploadedTypes, header.Header.Get("Content-Type"))
	fs.mu.Unlock()

	id := fmt.Sprintf("up-%d", n)
	writeJSON(w, map[string]interface{}{
		"FileId":   id,
		"FileName": header.Filename,
		"FileExt":  strings.TrimPrefix(filepath.Ext(header.Filename), "."),
		"FileSize": len(data),
		"Url":      fs.srv.URL + "/d/" + id,
	})
}

func (fs *fakeService) handleConvert(w http.ResponseWriter, r *http.Request) {
	if !fs.checkAuth(w, r) {
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var fields []formField
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value, _ := io.ReadAll(part)
		fields = append(fields, formField{Name: part.FormName(), Value: string(value)})
	}

	fs.mu.Lock()
	fs.convertPath = r.URL.Path
	fs.convertForm = fields
	status, body := fs.convertStatus, fs.convertBody
	fs.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if body != "" {
		_, _ = w.Write([]byte(body))
		return
	}
	writeJSON(w, map[string]interface{}{
		"ConversionCost": 1,
		"Files": []map[string]interface{}{
			{"FileId": "res-1", "FileName": "result.pdf", "FileExt": "pdf", "FileSize": 5, "Url": fs.srv.URL + "/d/res-1"},
		},
	})
}

func (fs *fakeService) handleUser(w http.ResponseWriter, r *http.Request) {
	if !fs.checkAuth(w, r) {
		return
	}
	writeJSON(w, map[string]interface{}{
		"Active":              true,
		"FullName":            "Test User",
		"Email":               "test@example.com",
		"SecondsLeft":         1500,
		"ConversionsTotal":    250,
		"ConversionsConsumed": 12,
	})
}

func (fs *fakeService) handleSchema(w http.ResponseWriter, r *http.Request) {
	if !fs.checkAuth(w, r) {
		return
	}
	fs.mu.Lock()
	doc, ok := fs.schemas[r.URL.Path]
	fs.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(doc))
}

func (fs *fakeService) handleFile(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	switch r.Method {
	case http.MethodDelete:
		fs.deletes = append(fs.deletes, r.URL.Path)
		if status, ok := fs.deleteStatus[r.URL.Path]; ok {
			w.WriteHeader(status)
		}
	case http.MethodGet:
		content, ok := fs.downloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(content))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fs *fakeService) setSchema(path, doc string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.schemas[path] = doc
}

func (fs *fakeService) setDownload(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.downloads[path] = content
}

func (fs *fakeService) setDeleteStatus(path string, status int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.deleteStatus[path] = status
}

func (fs *fakeService) setConvertReply(status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.convertStatus = status
	fs.convertBody = body
}

func (fs *fakeService) setUploadDelay(d time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.uploadDelay = d
}

func (fs *fakeService) lastConversion() (string, []formField) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.convertPath, fs.convertForm
}

func (fs *fakeService) deleteCalls() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, len(fs.deletes))
	copy(out, fs.deletes)
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeTempFile creates a file with the given name and content in a temp dir
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
