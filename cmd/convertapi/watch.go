package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
)

// settleDelay is how long a file must stay unchanged before it is converted
const settleDelay = 750 * time.Millisecond

func watchCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Convert every file written into a directory until interrupted",
		ArgsUsage: "DIR",
		Flags:     conversionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: convertapi watch --to FORMAT DIR", 2)
			}
			dir, err := filepath.Abs(c.Args().First())
			if err != nil {
				return err
			}
			outDir, err := filepath.Abs(c.String("out"))
			if err != nil {
				return err
			}
			if outDir == dir {
				return cli.Exit("--out must differ from the watched directory", 2)
			}

			client, err := rt.client()
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create file watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			fmt.Printf("Watching %s, results go to %s\n", dir, outDir)

			ready := make(chan string, 16)
			debounce := newDebouncer(settleDelay, func(path string) { ready <- path })
			defer debounce.stop()

			for {
				select {
				case <-c.Context.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && watchable(event.Name) {
						debounce.touch(event.Name)
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					rt.logger.WithError(err).Warn("File watcher error")
				case path := <-ready:
					if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
						continue
					}
					fmt.Printf("%s %s\n", color.CyanString("converting"), path)
					if err := convertInputs(c, client, []string{path}); err != nil {
						fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
					}
				}
			}
		},
	}
}

// watchable skips hidden and temporary files editors leave behind
func watchable(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, "~") && !strings.HasSuffix(name, ".tmp")
}

// debouncer fires once per path after it has been quiet for delay
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	fire   func(string)
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
