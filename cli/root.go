package cli

import (
	"context"
	"errors"
	"fmt"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"io"
	"os"
	"time"

	"fn_invoke/auth"
	"fn_invoke/config"
	"fn_invoke/invoker"
	"fn_invoke/models"
)

// ProgramName is the name the command is installed under
const ProgramName = "invoke-by-id"

// UsageMessage is printed when the positional arguments are wrong
const UsageMessage = "Usage: " + ProgramName + " <invoke endpoint> <functionid> <(optional) payload string>"

// Exit codes
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// ErrUsage is returned when the command line is malformed
var ErrUsage = errors.New("invalid usage")

// Options describe one run of the command
type Options struct {
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
	// Config is used as-is when set; otherwise it is loaded through Lookup
	Config *config.Config
	// Lookup reads environment variables; os.LookupEnv when nil
	Lookup config.LookupFunc
	// Dispatcher overrides the SDK transport; the SDK default when nil
	Dispatcher common.HTTPRequestDispatcher
}

// Run executes the command and returns the process exit code
func Run(ctx context.Context, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	// cobra falls back to os.Args when given nil
	if opts.Args == nil {
		opts.Args = []string{}
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.LoadConfigFrom(opts.Lookup)
	}
	logger := NewLogger(opts.Stderr, cfg.LogLevel)
	ctx = logger.WithContext(ctx)

	cmd := newRootCmd(cfg, opts)
	cmd.SetArgs(opts.Args)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, ErrUsage) {
		fmt.Fprintln(opts.Stderr, UsageMessage)
		return ExitUsage
	}

	fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
	return ExitError
}

// NewLogger returns a console logger writing to w at the named level
func NewLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func newRootCmd(cfg *config.Config, opts Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           ProgramName + " <invoke endpoint> <functionid> [payload]",
		Short:         "Invoke a deployed function by its OCID",
		Long:          `Invoke a single function through the regional functions invoke endpoint, signing the request with the credentials found in TENANT_OCID, USER_OCID, PUBLIC_KEY_FINGERPRINT, PRIVATE_KEY_LOCATION and PASSPHRASE, and print the response body.`,
		Args:          positionalArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.InvocationRequest{
				Endpoint:   args[0],
				FunctionID: args[1],
				Body:       []byte{},
			}
			if len(args) == 3 {
				req.Body = []byte(args[2])
			}
			return invoke(cmd, cfg, opts.Dispatcher, req)
		},
	}

	// Stop flag parsing at the first positional so a payload such as "-5"
	// or "--name=bob" is passed through untouched
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Join(ErrUsage, err)
	})

	rootCmd.AddCommand(
		newIdentityCmd(cfg),
		NewVersionCmd(),
	)

	return rootCmd
}

func positionalArgs(_ *cobra.Command, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: expected 2 or 3 arguments, got %d", ErrUsage, len(args))
	}
	return nil
}

func invoke(cmd *cobra.Command, cfg *config.Config, dispatcher common.HTTPRequestDispatcher, req models.InvocationRequest) error {
	ctx := cmd.Context()

	identity, err := auth.Resolve(ctx, cfg.Credentials)
	if err != nil {
		return err
	}

	client, err := invoker.New(invoker.Config{
		Identity:   identity,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("endpoint", req.Endpoint).
		Str("payload", string(req.Body)).
		Msg("Invoking function endpoint")

	body, err := client.Invoke(ctx, req)
	if err != nil {
		return err
	}

	_, err = io.WriteString(cmd.OutOrStdout(), body)
	return err
}
