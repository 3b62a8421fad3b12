package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/sunbankio/convertapi-go/config"
	"github.com/sunbankio/convertapi-go/convertapi"
	"github.com/sunbankio/convertapi-go/logging"
)

// TestCase is one live check against the service
type TestCase struct {
	Name string
	Run  func(ctx context.Context, s *suite) error
}

// suite carries state between cases: later cases reuse earlier uploads and results
type suite struct {
	client  *convertapi.Client
	workDir string
	input   *convertapi.FileParam
	result  *convertapi.ConversionResponse
}

var allTestCases = []TestCase{
	{"user", testUser},
	{"info", testConverterInfo},
	{"convert", testConvert},
	{"chain", testChainedConversion},
	{"wildcard", testWildcardConversion},
	{"cleanup", testCleanup},
}

func main() {
	app := &cli.App{
		Name:  "integration-test",
		Usage: "Run live checks against the ConvertAPI service (uses CONVERTAPI_TOKEN)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "case",
				Usage: "Run a single case (user, info, convert, chain, wildcard, cleanup)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Minute,
				Usage: "Overall deadline",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.LoadConfig()
	logger := logging.NewLogger()
	logger.SetDebug(cfg.Logging.IsDebugMode)

	client, err := convertapi.NewClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "convertapi-it-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "hello.txt")
	if err := os.WriteFile(inputPath, []byte("Hello from the convertapi-go integration test.\n"), 0600); err != nil {
		return err
	}

	s := &suite{
		client:  client,
		workDir: workDir,
		input:   convertapi.NewFileParam(inputPath),
	}

	selected := allTestCases
	if name := c.String("case"); name != "" {
		selected = nil
		for _, tc := range allTestCases {
			if tc.Name == name {
				selected = append(selected, tc)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("unknown case %q", name)
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	failed := 0
	for _, tc := range selected {
		fmt.Printf("=== %s ===\n", tc.Name)
		if err := tc.Run(ctx, s); err != nil {
			failed++
			fmt.Println(color.RedString("FAIL: %v", err))
		} else {
			fmt.Println(color.GreenString("PASS"))
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d case(s) failed", failed, len(selected)), 1)
	}
	return nil
}

func testUser(ctx context.Context, s *suite) error {
	user, err := s.client.User(ctx)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return fmt.Errorf("user email is empty")
	}
	return nil
}

func testConverterInfo(ctx context.Context, s *suite) error {
	info, err := s.client.ConverterInfo(ctx, "docx", "pdf")
	if err != nil {
		return err
	}
	if info.Title == "" {
		return fmt.Errorf("converter title is empty")
	}
	if !strings.Contains(info.Accept(), ".docx") {
		return fmt.Errorf("expected .docx among accepted formats, got %q", info.Accept())
	}
	return nil
}

func testConvert(ctx context.Context, s *suite) error {
	resp, err := s.client.Convert(ctx, "txt", "pdf", s.input, convertapi.NewParam("PageSize", "a4"))
	if err != nil {
		return err
	}
	if resp.FileCount() != 1 {
		return fmt.Errorf("expected 1 result file, got %d", resp.FileCount())
	}
	if len(resp.UploadedInputFiles) != 1 {
		return fmt.Errorf("expected 1 tracked input, got %d", len(resp.UploadedInputFiles))
	}
	s.result = resp

	stream, err := s.client.FileStream(ctx, resp.Files[0])
	if err != nil {
		return err
	}
	defer stream.Close()
	head := make([]byte, 5)
	if _, err := io.ReadFull(stream, head); err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	if string(head) != "%PDF-" {
		return fmt.Errorf("result is not a PDF, starts with %q", head)
	}
	return nil
}

func testChainedConversion(ctx context.Context, s *suite) error {
	if s.result == nil {
		if err := testConvert(ctx, s); err != nil {
			return err
		}
	}
	resp, err := s.client.Convert(ctx, "pdf", "jpg",
		convertapi.NewUploadedFileParam(convertapi.DefaultFileParamName, s.result.Files[0]))
	if err != nil {
		return err
	}
	defer s.client.DeleteAll(ctx, resp)

	saved, err := s.client.SaveFiles(ctx, resp.Files, s.workDir)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return fmt.Errorf("no images saved")
	}
	return nil
}

func testWildcardConversion(ctx context.Context, s *suite) error {
	resp, err := s.client.Convert(ctx, convertapi.WildcardFormat, "zip", s.input)
	if err != nil {
		return err
	}
	defer s.client.DeleteFiles(ctx, resp.Files)

	if resp.FileCount() == 0 {
		return fmt.Errorf("archive conversion returned no files")
	}
	return nil
}

func testCleanup(ctx context.Context, s *suite) error {
	if s.result == nil {
		if err := testConvert(ctx, s); err != nil {
			return err
		}
	}
	if n := s.client.DeleteAllWithParams(ctx, s.result, s.input); n == 0 {
		return fmt.Errorf("nothing was deleted")
	}
	return nil
}
