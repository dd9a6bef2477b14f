package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/beekhof/reconcile-tools/internal/config"
	"github.com/beekhof/reconcile-tools/internal/instagram"
	"github.com/beekhof/reconcile-tools/internal/session"

	"github.com/spf13/cobra"
)

const longHelp = `Follow Checker

Lists the accounts the target account follows that do not follow it back.

The followers and following lists are fetched page by page with a randomized
pause between requests. Both lists are written to <output_dir> as
followers_formatted.txt and following_formatted.txt, with raw snapshots in
debug_followers.json and debug_following.json. Usernames listed in the
exclusions file are left out of the report.

If either list could not be fetched completely the report is still printed,
with a warning that it may name accounts that do follow back.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (IG_SESSIONID, IG_TARGET_ACCOUNT), also read
       from the --env-file if present
    3. Config file (--config, YAML)
    4. Defaults

CONFIG FILE:
    sessionid: "<browser sessionid cookie>"
    target_account: "someone"
    exclusions_file: exclusions.txt
    output_dir: .
    max_pages: 5000
    min_delay: 1.5s
    max_delay: 2.5s`

type options struct {
	configFile string
	envFile    string
	verbose    bool
	overrides  config.FollowOverrides
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

	rootCmd := &cobra.Command{
		Use:           "followcheck",
		Short:         "Report accounts that do not follow back",
		Long:          longHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.configFile, "config", config.DefaultFollowConfigPath, "Path to YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")
	flags.StringVar(&opts.overrides.TargetAccount, "target", "", "Account to check (overrides config file and IG_TARGET_ACCOUNT)")
	flags.StringVar(&opts.overrides.ExclusionsFile, "exclusions", "", "Newline-delimited usernames left out of the report")
	flags.StringVar(&opts.overrides.OutputDir, "output-dir", "", "Directory for the formatted lists and debug snapshots")
	flags.IntVar(&opts.overrides.MaxPages, "max-pages", 0, "Maximum pages fetched per list")

	return rootCmd
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.LoadFollowConfig(opts.configFile, opts.envFile, opts.overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.verbose {
		log.Printf("DEBUG: target=%s max_pages=%d delay=%s..%s output_dir=%s",
			cfg.TargetAccount, cfg.MaxPages, cfg.MinDelay, cfg.MaxDelay, cfg.OutputDir)
	}

	client := instagram.NewClient(instagram.Options{
		SessionID:  cfg.SessionID,
		AppID:      cfg.AppID,
		UserAgent:  cfg.UserAgent,
		WebBaseURL: cfg.WebBaseURL,
		APIBaseURL: cfg.APIBaseURL,
	})

	_, err = session.NewFollowSession(client, cfg, os.Stdout, opts.verbose).Run(ctx)
	return err
}
