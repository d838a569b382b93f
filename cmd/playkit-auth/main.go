package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/playkit-dev/playkit-auth/internal/browser"
	"github.com/playkit-dev/playkit-auth/internal/config"
	"github.com/playkit-dev/playkit-auth/internal/deviceauth"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// login flags
var (
	baseURLFlag string
	scopeFlag   string
	noBrowser   bool
)

// Exit codes
const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitConfig    = 3
	ExitDenied    = 4
	ExitExpired   = 5
	ExitCancelled = 6
)

var rootCmd = &cobra.Command{
	Use:   "playkit-auth",
	Short: "PlayKit device authorization CLI",
	Long: `Authenticate this machine against the PlayKit platform using the
device authorization grant with PKCE.

The login command registers an authorization session, opens the approval
page in your browser, and polls the platform until you approve, deny, or
the session expires. On success the token payload is printed to stdout
as JSON; all diagnostics go to stderr.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// overrideExitCode is set by subcommands so main() can call os.Exit()
// after cobra finishes. This avoids calling os.Exit() inside RunE which
// would bypass deferred functions. -1 means "use default".
var overrideExitCode = -1

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize this machine with PlayKit",
	Long: `Run the device authorization flow.

Exit codes:
  0 = Authorized (token printed to stdout)
  1 = Error (initiation failure, RNG failure)
  4 = Authorization denied by the user
  5 = Session expired before approval
  6 = Cancelled (Ctrl-C)`,
	RunE: runLogin,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display version, commit hash, and build date.`,
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	Long: `Load and validate the configuration file without contacting the platform.

Exit codes:
  0 = Configuration is valid
  3 = Configuration error`,
	RunE: runCheckConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigPath(),
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")

	loginCmd.Flags().StringVar(&baseURLFlag, "base-url", "",
		"Platform base URL - overrides config file")
	loginCmd.Flags().StringVar(&scopeFlag, "scope", "",
		"Requested scope - overrides config file")
	loginCmd.Flags().BoolVar(&noBrowser, "no-browser", false,
		"Print the authorization URL instead of opening a browser")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	// If a subcommand set a specific exit code, use it.
	// This is done outside RunE so deferred functions run properly.
	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

// defaultConfigPath returns the per-user config file location.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "playkit.yaml"
	}
	return home + "/.config/playkit/playkit.yaml"
}

// loadLoginConfig loads the config file and applies flag overrides.
// A missing config file is not fatal for login: defaults plus flags are
// enough to reach the platform.
func loadLoginConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	if baseURLFlag != "" {
		cfg.API.BaseURL = baseURLFlag
	}
	if scopeFlag != "" {
		cfg.API.Scope = scopeFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runLogin executes the device authorization flow
func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadLoginConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	config.SetupLogging(&cfg.Log)

	// Ctrl-C cancels the flow; the poll loop observes it at the next
	// iteration boundary and resolves Cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: time.Duration(cfg.API.RequestTimeout) * time.Second}
	client := deviceauth.NewClient(cfg.API.BaseURL, httpClient)

	openURL := browser.Open
	if noBrowser {
		openURL = func(url string) error {
			fmt.Fprintf(os.Stderr, "Open this URL to authorize: %s\n", url)
			return nil
		}
	}

	flow := deviceauth.NewFlow(client, deviceauth.Options{
		Scope:   cfg.API.Scope,
		OpenURL: openURL,
		OnStatus: func(message string) {
			fmt.Fprintf(os.Stderr, "%s\n", message)
		},
	})

	outcome := flow.Run(ctx)

	switch outcome.Kind {
	case deviceauth.OutcomeAuthorized:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.Result); err != nil {
			return fmt.Errorf("failed to write token: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Authorization successful")
		return nil

	case deviceauth.OutcomeDenied:
		fmt.Fprintf(os.Stderr, "%s\n", outcome.Message)
		overrideExitCode = ExitDenied
		return nil

	case deviceauth.OutcomeExpired:
		fmt.Fprintf(os.Stderr, "%s\n", outcome.Message)
		overrideExitCode = ExitExpired
		return nil

	case deviceauth.OutcomeCancelled:
		fmt.Fprintln(os.Stderr, "Authorization cancelled")
		overrideExitCode = ExitCancelled
		return nil

	default:
		if outcome.Err != nil {
			return fmt.Errorf("%s: %w", outcome.Message, outcome.Err)
		}
		return fmt.Errorf("%s", outcome.Message)
	}
}

// runVersion displays version information
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("playkit-auth version %s\n", version)
	fmt.Printf("  Commit:     %s\n", commit)
	fmt.Printf("  Build date: %s\n", buildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

// runCheckConfig validates the configuration
func runCheckConfig(cmd *cobra.Command, args []string) error {
	fmt.Printf("Checking configuration: %s\n\n", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil // exit code handled via overrideExitCode
	}

	fmt.Println("Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	fmt.Printf("  Scope:           %s\n", cfg.API.Scope)
	fmt.Printf("  Request Timeout: %d seconds\n", cfg.API.RequestTimeout)
	fmt.Printf("  Log Level:       %s\n", cfg.Log.Level)
	fmt.Printf("  Log Format:      %s\n", cfg.Log.Format)

	return nil
}
