package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/sunbankio/convertapi-go/config"
	"github.com/sunbankio/convertapi-go/convertapi"
	"github.com/sunbankio/convertapi-go/logging"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"PageRange=1-2", "Pages=1", "Password=a=b", "Pages=3"})
	require.NoError(t, err)
	require.Len(t, params, 3)

	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"PageRange", "Pages", "Password"}, names)
	assert.Equal(t, []string{"1", "3"}, params[1].(*convertapi.Param).Values())
	assert.Equal(t, []string{"a=b"}, params[2].(*convertapi.Param).Values())
}

func TestParseParamsRejectsMalformed(t *testing.T) {
	_, err := parseParams([]string{"NoValue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/a.pdf"))
	assert.True(t, isURL("HTTP://example.com/a.pdf"))
	assert.False(t, isURL("./a.pdf"))
	assert.False(t, isURL("up-1"))
}

func TestWatchable(t *testing.T) {
	assert.True(t, watchable("/in/report.docx"))
	assert.False(t, watchable("/in/.report.docx.swp"))
	assert.False(t, watchable("/in/report.docx~"))
	assert.False(t, watchable("/in/upload.tmp"))
}

func TestDebouncerFiresOncePerQuietPath(t *testing.T) {
	fired := make(chan string, 4)
	d := newDebouncer(20*time.Millisecond, func(path string) { fired <- path })
	defer d.stop()

	d.touch("a")
	d.touch("a")
	d.touch("b")

	got := map[string]int{}
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case p := <-fired:
			got[p]++
		case <-timeout:
			t.Fatal("debouncer did not fire")
		}
	}
	select {
	case p := <-fired:
		t.Fatalf("unexpected extra event for %s", p)
	case <-time.After(60 * time.Millisecond):
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, got)
}

func TestConvertCleanupDeletesEveryTrackedInput(t *testing.T) {
	var (
		mu      sync.Mutex
		deletes []string
		srv     *httptest.Server
	)
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			_, _ = io.Copy(io.Discard, r.Body)
			fmt.Fprintf(w, `{"FileId":"up-1","FileName":"local.txt","FileExt":"txt","FileSize":4,"Url":%q}`, srv.URL+"/d/up-1")
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/convert/"):
			_, _ = io.Copy(io.Discard, r.Body)
			fmt.Fprintf(w, `{"ConversionCost":1,"Files":[{"FileId":"res-1","FileName":"out.pdf","FileExt":"pdf","FileSize":3,"Url":%q}]}`, srv.URL+"/d/res-1")
		case r.Method == http.MethodGet && r.URL.Path == "/d/res-1":
			_, _ = w.Write([]byte("pdf"))
		case r.Method == http.MethodDelete:
			mu.Lock()
			deletes = append(deletes, r.URL.Path)
			mu.Unlock()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.API.Token = "test-token"
	cfg.API.BaseURI = srv.URL
	rt := &runtime{cfg: cfg, logger: logging.NewDiscardLogger()}

	local := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(local, []byte("text"), 0600))
	outDir := t.TempDir()

	app := &cli.App{Name: "convertapi", Commands: []*cli.Command{convertCommand(rt)}}
	err := app.Run([]string{"convertapi", "convert", "--from", "txt", "--to", "pdf", "--cleanup", "-o", outDir,
		local, srv.URL + "/d/in-1"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "out.pdf"))
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"/d/res-1", "/d/up-1", "/d/in-1"}, deletes)
}
