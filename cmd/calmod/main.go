package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/beekhof/reconcile-tools/internal/auth"
	calclient "github.com/beekhof/reconcile-tools/internal/calendar"
	"github.com/beekhof/reconcile-tools/internal/config"
	"github.com/beekhof/reconcile-tools/internal/mutate"
	"github.com/beekhof/reconcile-tools/internal/prompt"
	"github.com/beekhof/reconcile-tools/internal/session"

	"github.com/spf13/cobra"
)

const (
	readOnlyScope  = "https://www.googleapis.com/auth/calendar.readonly"
	readWriteScope = "https://www.googleapis.com/auth/calendar"
)

const longHelp = `Calendar Modifier

Finds Google Calendar events whose title matches a keyword, lets you pick
which ones to act on, and then exports or deletes the picked events.

MODES:
    select    List events from time_min onward, show every event whose title
              matches a keyword from the keywords file, and ask whether to add
              it to the delete list. The picked IDs are saved to the ids file.
    export    Fetch every saved ID and write the events to an ICS file.
    delete    Check that every saved ID still exists. If any is missing,
              nothing is deleted. Otherwise type the confirmation token
              (default "yes") to delete them one by one.

    Run without a mode to choose one from a menu.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (CALMOD_TOKEN_PATH, CALMOD_WRITE_TOKEN_PATH,
       GOOGLE_CREDENTIALS_PATH, CALMOD_CALENDAR_ID, CALMOD_TIME_MIN,
       CALMOD_MAX_PAGES)
    3. Config file (--config, JSON)
    4. Defaults

CONFIG FILE:
    {
      "token_path": "token.json",
      "write_token_path": "token_write.json",
      "google_credentials_path": "credentials.json",
      "calendar_id": "primary",
      "time_min": "2023-11-01T00:00:00Z",
      "keywords_file": "keywords.txt",
      "ids_file": "delete_ids.txt",
      "output_ics": "filtered_entries.ics",
      "min_delay": "0s",
      "max_delay": "0s",
      "confirm_token": "yes",
      "requests_per_second": 5
    }

    select and export use a read-only token; delete uses a separate
    read-write token. You'll be prompted to authorize each on first use.`

type options struct {
	configFile string
	verbose    bool
	overrides  config.Overrides
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	console := prompt.NewConsole(os.Stdin, os.Stdout)

	rootCmd := &cobra.Command{
		Use:           "calmod",
		Short:         "Select, export and safely delete keyword-matched calendar events",
		Long:          longHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), opts, console)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to JSON config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")
	flags.StringVar(&opts.overrides.TokenPath, "token-path", "", "Path of the read-only OAuth token (overrides config file and CALMOD_TOKEN_PATH)")
	flags.StringVar(&opts.overrides.WriteTokenPath, "write-token-path", "", "Path of the read-write OAuth token (overrides config file and CALMOD_WRITE_TOKEN_PATH)")
	flags.StringVar(&opts.overrides.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH)")
	flags.StringVar(&opts.overrides.CalendarID, "calendar-id", "", "Calendar to operate on (overrides config file and CALMOD_CALENDAR_ID)")
	flags.StringVar(&opts.overrides.TimeMin, "time-min", "", "RFC 3339 lower bound for listed events (overrides config file and CALMOD_TIME_MIN)")
	flags.StringVar(&opts.overrides.KeywordsFile, "keywords-file", "", "Newline-delimited keyword file")
	flags.StringVar(&opts.overrides.IDsFile, "ids-file", "", "Saved event ID list")
	flags.StringVar(&opts.overrides.OutputICS, "output-ics", "", "ICS file written by export")
	flags.IntVar(&opts.overrides.MaxPages, "max-pages", 0, "Maximum event pages to list (overrides config file and CALMOD_MAX_PAGES)")
	flags.DurationVar(&opts.overrides.MinDelay, "min-delay", 0, "Shortest pause between event pages")
	flags.DurationVar(&opts.overrides.MaxDelay, "max-delay", 0, "Longest pause between event pages")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "select",
			Short: "Pick keyword-matched events and save their IDs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSelect(cmd.Context(), opts, console)
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Export saved events to an ICS file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runExport(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Verify and delete saved events",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDelete(cmd.Context(), opts, console)
			},
		},
	)

	return rootCmd
}

func runMenu(ctx context.Context, opts *options, console *prompt.Console) error {
	mode, err := console.Choose(ctx, "Select mode:", []prompt.Option{
		{Key: "select", Label: "Entry Chooser (select + save IDs)"},
		{Key: "export", Label: "Export to ICS (based on saved IDs)"},
		{Key: "delete", Label: "Safe Deleter (only deletes if all IDs are valid)"},
	})
	if err != nil {
		return handlePromptErr(err)
	}

	switch mode {
	case "select":
		return runSelect(ctx, opts, console)
	case "export":
		return runExport(ctx, opts)
	default:
		return runDelete(ctx, opts, console)
	}
}

func runSelect(ctx context.Context, opts *options, console *prompt.Console) error {
	cfg, err := config.LoadConfig(opts.configFile, opts.overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	keywords, err := config.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return err
	}
	if opts.verbose {
		log.Printf("DEBUG: loaded %d keywords from %s", len(keywords), cfg.KeywordsFile)
	}

	s, err := connect(ctx, cfg, opts.verbose, false)
	if err != nil {
		return err
	}

	if _, err := s.Select(ctx, keywords, session.EventPrompt(console)); err != nil {
		return handlePromptErr(err)
	}
	return nil
}

func runExport(ctx context.Context, opts *options) error {
	cfg, err := config.LoadConfig(opts.configFile, opts.overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !checkIDsFile(cfg) {
		return nil
	}

	s, err := connect(ctx, cfg, opts.verbose, false)
	if err != nil {
		return err
	}

	_, err = s.Export(ctx)
	return err
}

func runDelete(ctx context.Context, opts *options, console *prompt.Console) error {
	cfg, err := config.LoadConfig(opts.configFile, opts.overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !checkIDsFile(cfg) {
		return nil
	}

	s, err := connect(ctx, cfg, opts.verbose, true)
	if err != nil {
		return err
	}

	if _, err := s.Delete(ctx, console); err != nil {
		if errors.Is(err, mutate.ErrEmptyBatch) {
			fmt.Printf("'%s' has no event IDs.\n", cfg.IDsFile)
			return nil
		}
		return err
	}
	return nil
}

// checkIDsFile reports a missing ids file without authenticating first.
func checkIDsFile(cfg *config.Config) bool {
	if _, err := config.LoadTargetIDs(cfg.IDsFile); err != nil {
		if errors.Is(err, config.ErrConfigMissing) {
			fmt.Printf("'%s' not found. Run select first.\n", cfg.IDsFile)
			return false
		}
	}
	return true
}

// connect authenticates with the read-only token, or the read-write token when
// write is set, and returns a session bound to the configured calendar.
func connect(ctx context.Context, cfg *config.Config, verbose, write bool) (*session.CalendarSession, error) {
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}

	scope, tokenPath := readOnlyScope, cfg.TokenPath
	if write {
		scope, tokenPath = readWriteScope, cfg.WriteTokenPath
	}

	oauthConfig := auth.NewOAuthConfig(clientID, clientSecret, scope)
	httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, auth.NewFileTokenStore(tokenPath))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	client, err := calclient.NewClient(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	return session.NewCalendarSession(client, cfg, os.Stdout, verbose), nil
}

func handlePromptErr(err error) error {
	if errors.Is(err, prompt.ErrAborted) || errors.Is(err, context.Canceled) {
		fmt.Println("Aborted.")
		return nil
	}
	return err
}
