package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/sunbankio/convertapi-go/auth"
	"github.com/sunbankio/convertapi-go/config"
	"github.com/sunbankio/convertapi-go/convertapi"
	"github.com/sunbankio/convertapi-go/logging"
	"github.com/sunbankio/convertapi-go/utils"
)

// Version information (set during build)
var Version = "dev"

// runtime holds what the Before hook resolved for the commands
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := &runtime{}
	app := &cli.App{
		Name:    "convertapi",
		Usage:   "Convert documents with the ConvertAPI service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Usage:   "API token (falls back to stored credentials)",
				EnvVars: []string{"CONVERTAPI_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "base-uri",
				Usage:   "Service endpoint",
				EnvVars: []string{"CONVERTAPI_BASE_URI"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			return rt.load(c)
		},
		Commands: []*cli.Command{
			convertCommand(rt),
			watchCommand(rt),
			infoCommand(rt),
			userCommand(rt),
			deleteCommand(rt),
			loginCommand(rt),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func (rt *runtime) load(c *cli.Context) error {
	if path := c.String("config"); path != "" {
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			return err
		}
		rt.cfg = cfg
	} else {
		rt.cfg = config.LoadConfig()
	}
	if token := c.String("token"); token != "" {
		rt.cfg.API.Token = token
	}
	if baseURI := c.String("base-uri"); baseURI != "" {
		rt.cfg.API.BaseURI = baseURI
	}

	rt.logger = logging.NewLogger()
	rt.logger.SetDebug(rt.cfg.Logging.IsDebugMode || c.Bool("debug"))
	return nil
}

func (rt *runtime) client() (*convertapi.Client, error) {
	return convertapi.NewClientFromConfig(rt.cfg, rt.logger)
}

// conversionFlags are shared by convert and watch
func conversionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Value: convertapi.WildcardFormat,
			Usage: "Source format, * takes it from the first uploaded file",
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Destination format",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "param",
			Aliases: []string{"p"},
			Usage:   "Conversion parameter as Name=Value, repeat for arrays",
		},
		&cli.StringFlag{
			Name:  "file-param",
			Usage: "Form field for the inputs (default File, or Files for several)",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Value:   ".",
			Usage:   "Output directory",
		},
		&cli.BoolFlag{
			Name:  "cleanup",
			Usage: "Delete inputs and results from the service afterwards",
		},
	}
}

func convertCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert local files or URLs and save the results",
		ArgsUsage: "FILE_OR_URL...",
		Flags:     conversionFlags(),
		Action: func(c *cli.Context) error {
			inputs := c.Args().Slice()
			if len(inputs) == 0 {
				return cli.Exit("at least one input file or URL is required", 2)
			}
			client, err := rt.client()
			if err != nil {
				return err
			}
			return convertInputs(c, client, inputs)
		},
	}
}

// convertInputs runs one conversion over inputs using the conversion flags of c
func convertInputs(c *cli.Context, client *convertapi.Client, inputs []string) error {
	fieldName := c.String("file-param")
	if fieldName == "" {
		fieldName = convertapi.DefaultFileParamName
		if len(inputs) > 1 {
			fieldName = "Files"
		}
	}

	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}
	for _, input := range inputs {
		if isURL(input) {
			params = append(params, convertapi.NewURLFileParam(fieldName, input))
		} else {
			params = append(params, convertapi.NewNamedFileParam(fieldName, input))
		}
	}

	resp, err := client.Convert(c.Context, c.String("from"), c.String("to"), params...)
	if err != nil {
		return err
	}

	outDir := c.String("out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	saved, saveErr := client.SaveFiles(c.Context, resp.Files, outDir)
	for i, path := range saved {
		fmt.Printf("%s %s (%s)\n", color.GreenString("saved"), path, utils.FormatFileSize(resp.Files[i].FileSize))
	}
	fmt.Printf("Conversion cost: %s\n", utils.FormatIntWithCommas(int64(resp.ConversionCost)))

	if c.Bool("cleanup") {
		n := client.DeleteAll(c.Context, resp)
		fmt.Printf("%s %d file(s) from the service\n", color.YellowString("deleted"), n)
	}
	return saveErr
}

func infoCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show what a converter accepts",
		ArgsUsage: "SRC DST",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: convertapi info SRC DST", 2)
			}
			client, err := rt.client()
			if err != nil {
				return err
			}

			info, err := client.ConverterInfo(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}

			bold := color.New(color.Bold).SprintFunc()
			fmt.Println(bold(info.Title))
			if info.Summary != "" {
				fmt.Println(info.Summary)
			}
			accepts := info.Accept()
			if accepts == "" {
				accepts = "any"
			}
			fmt.Printf("Accepts: %s\n", color.CyanString(accepts))
			fmt.Printf("Multiple files: %t\n", info.AcceptsMultiple)
			if info.Parameters.Len() > 0 {
				fmt.Println("Parameters:")
				for _, name := range info.Parameters.Names() {
					label, _ := info.Parameters.Label(name)
					if label == name {
						fmt.Printf("  %s\n", name)
					} else {
						fmt.Printf("  %s %s\n", name, color.HiBlackString("(%s)", label))
					}
				}
			}
			return nil
		},
	}
}

func userCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Show account status",
		Action: func(c *cli.Context) error {
			client, err := rt.client()
			if err != nil {
				return err
			}
			user, err := client.User(c.Context)
			if err != nil {
				return err
			}

			status := color.GreenString("active")
			if !user.Active {
				status = color.RedString("inactive")
			}
			fmt.Printf("%s <%s> %s\n", user.FullName, user.Email, status)
			fmt.Printf("Seconds left: %s\n", utils.FormatIntWithCommas(user.SecondsLeft))
			fmt.Printf("Conversions: %s of %s\n",
				utils.FormatIntWithCommas(user.ConversionsConsumed), utils.FormatIntWithCommas(user.ConversionsTotal))
			return nil
		},
	}
}

func deleteCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete files from the service by URL or FileId",
		ArgsUsage: "URL_OR_ID...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one URL or FileId is required", 2)
			}
			client, err := rt.client()
			if err != nil {
				return err
			}

			files := make([]convertapi.UploadedFile, 0, c.NArg())
			for _, arg := range c.Args().Slice() {
				if isURL(arg) {
					files = append(files, convertapi.UploadedFile{URL: arg})
				} else {
					files = append(files, convertapi.UploadedFile{FileID: arg})
				}
			}
			n := client.DeleteFiles(c.Context, files)
			fmt.Printf("%s %d of %d file(s)\n", color.YellowString("deleted"), n, len(files))
			if n < len(files) {
				return cli.Exit("some files could not be deleted", 1)
			}
			return nil
		},
	}
}

func loginCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Store an API token for later runs",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			token := strings.TrimSpace(c.Args().First())
			if token == "" {
				token = rt.cfg.API.Token
			}
			if token == "" {
				return cli.Exit("a token is required", 2)
			}

			creds := auth.Credentials{Token: token, BaseURI: auth.NormalizeBaseURI(rt.cfg.API.BaseURI)}
			client, err := convertapi.NewClient(token, convertapi.WithConfig(rt.cfg),
				convertapi.WithBaseURI(creds.BaseURI), convertapi.WithLogger(rt.logger))
			if err != nil {
				return err
			}
			user, err := client.User(c.Context)
			if err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}

			path := auth.CredentialsPath(rt.cfg)
			if err := auth.SaveCredentials(path, creds); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s, credentials saved to %s\n", color.GreenString(user.Email), path)
			return nil
		},
	}
}

// parseParams turns Name=Value pairs into parameters, merging repeated names into arrays
func parseParams(raw []string) ([]convertapi.Parameter, error) {
	var order []string
	values := make(map[string][]string)
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected Name=Value", pair)
		}
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = append(values[name], value)
	}

	params := make([]convertapi.Parameter, 0, len(order))
	for _, name := range order {
		params = append(params, convertapi.NewParam(name, values[name]...))
	}
	return params, nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
