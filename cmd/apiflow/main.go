package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiflow "github.com/Mohammad-abdo/DR-LOW-sub002"
)

var (
	// Global flags
	configPath string
	baseURL    string
	tokenDB    string
	route      string
	verbose    bool
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "apiflow",
	Short: "Issue dashboard API requests through the apiflow pipeline",
	Long: `apiflow sends requests the way the dashboard does: bearer token from the
local credential store, deduplicated reads, retries with backoff, a single
replay after 429 and session invalidation on 401.

Examples:
  apiflow token set eyJhbGciOi...
  apiflow get /pharmacy/orders --query status=open
  apiflow post /hr/documents --form title=Contract --file file=./contract.pdf
  apiflow get /dashboard/stats --repeat 5   # concurrent, one dispatch`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = apiflow.BuildZapLogger(apiflow.LoggingConfig{Level: level})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), apiflow.ReadBuild())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides config and APIFLOW_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&tokenDB, "token-db", defaultTokenDB(), "SQLite credential store path")
	rootCmd.PersistentFlags().StringVar(&route, "route", "", "Dashboard route the request is issued from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "deadline", 2*time.Minute, "Overall command deadline")

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		rootCmd.AddCommand(newRequestCmd(method))
	}

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenClearCmd)

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultTokenDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "apiflow-credentials.db"
	}
	return filepath.Join(home, ".apiflow", "credentials.db")
}

// loadConfig returns the file config when --config is set, otherwise the
// defaults with environment overrides.
func loadConfig() (*apiflow.Config, error) {
	if configPath != "" {
		return apiflow.LoadConfig(configPath)
	}
	cfg := apiflow.DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore() (*apiflow.SQLiteCredentialStore, error) {
	store, err := apiflow.OpenSQLiteCredentialStore(tokenDB)
	if err != nil {
		return nil, fmt.Errorf("opening credential store %s: %w", tokenDB, err)
	}
	return store, nil
}
