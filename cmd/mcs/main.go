package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mcs-go/internal/app"
	"mcs-go/internal/config"
	"mcs-go/internal/credentials"
	"mcs-go/internal/records"
	"mcs-go/internal/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var verbose bool

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	path := defaults.ConfigPath
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, path, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Migrate", "Serve").
func newApp(operation string) (*app.App, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cfg, operation)
}

func newAppWithConfig(cfg *config.Config, operation string) (*app.App, error) {
	a, err := app.NewApp(cfg, operation, app.Options{
		Passphrase: readPassphrase,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "mcs",
	Short:        "Migrate local files to cloud storage",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Println("Edit the [storage] section and set enabled = true to start migrating.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Provider:  %s (enabled: %t)\n", cfg.Storage.Provider, cfg.Storage.Enabled)
		if cfg.Storage.PrivateBucket != "" || cfg.Storage.PublicBucket != "" {
			fmt.Printf("Buckets:   private=%s public=%s\n", cfg.Storage.PrivateBucket, cfg.Storage.PublicBucket)
		}
		fmt.Printf("Secret:    %s\n", cfg.Credentials.Type)
		fmt.Printf("Records:   %s\n", cfg.Records.Type)
		for _, r := range cfg.LocalRoots {
			vis := "public"
			if r.Private {
				vis = "private"
			}
			fmt.Printf("Root:      %-16s -> %s (%s)\n", r.URLPrefix, r.Dir, vis)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nConfig problems: %v\n", err)
		}
		if err := cfg.Storage.Validate(); err != nil {
			fmt.Printf("\nStorage problems: %v\n", err)
		}
		return nil
	},
}

var configSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the provider secret key",
}

var configSecretSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Seal the provider secret key with a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		ageFile := cfg.Credentials.AgeFile
		if ageFile == "" {
			ageFile = filepath.Join(cfg.BaseDir, "secret.age")
		}

		secret, err := promptSecret("Provider secret key: ")
		if err != nil {
			return err
		}
		passphrase, err := promptNewPassphrase()
		if err != nil {
			return err
		}

		if err := credentials.NewAgeStore(ageFile).Seal(passphrase, secret); err != nil {
			return fmt.Errorf("sealing secret: %w", err)
		}

		cfg.Credentials = config.CredentialsConfig{Type: "age", AgeFile: ageFile}
		if err := config.WriteToFile(path, cfg); err != nil {
			return err
		}
		fmt.Printf("Secret sealed to %s\n", ageFile)
		return nil
	},
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage the local record store",
}

var recordsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the record store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := records.MigrateFromConfig(cfg.Records); err != nil {
			return fmt.Errorf("migrating record store: %w", err)
		}
		fmt.Printf("Record store ready at %s\n", filepath.Join(cfg.Records.DataDir, records.DBFileName))
		return nil
	},
}

var recordsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register files under the local roots that have no record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		res, err := a.ScanRecords(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d file(s), registered %d new record(s)\n", res.Found, res.Added)
		return nil
	},
}

var recordsUploadCmd = &cobra.Command{
	Use:   "upload ID",
	Short: "Upload the local file of one record to cloud storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UploadRecord")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		res, err := a.UploadRecord(ctx, args[0])
		if err != nil {
			return err
		}
		renderUpload(os.Stdout, res)
		return nil
	},
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that the storage provider is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("TestConnection")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		res := a.TestConnection(ctx)
		fmt.Println(res.Message)
		if !res.Success {
			return errors.New("connection test failed")
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate existing local files to cloud storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Migrate")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		report, err := a.MigrateExistingFiles(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		renderReport(os.Stdout, report)
		if n := len(report.Errors); n > 0 {
			return fmt.Errorf("%d record(s) failed to migrate", n)
		}
		return nil
	},
}

// object command
var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Inspect stored objects",
}

var objectURLCmd = &cobra.Command{
	Use:   "url CONTENT_HASH",
	Short: "Print a short-lived download URL for an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileName, _ := cmd.Flags().GetString("file-name")

		a, err := newApp("GenerateFileURL")
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.GenerateFileURL(cmd.Context(), args[0], fileName)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete CONTENT_HASH",
	Short: "Delete an object from cloud storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteObject")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteObject(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the storage RPC API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		a, err := newAppWithConfig(cfg, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if listen == "" {
			listen = cfg.Server.Listen
		}
		if listen == "" {
			listen = config.DefaultListen
		}

		var tokens *server.TokenManager
		if cfg.Server.JWTSecret != "" {
			tokens = server.NewTokenManager(cfg.Server.JWTSecret, 0)
		} else {
			fmt.Fprintln(os.Stderr, "warning: server.jwt_secret is not set, authentication is disabled")
		}

		ctx, stop := signalContext()
		defer stop()

		gin.SetMode(gin.ReleaseMode)
		return server.New(a, tokens, a.Logger()).ListenAndServe(ctx, listen)
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue SUBJECT",
	Short: "Issue a bearer token for the RPC API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roles, _ := cmd.Flags().GetStringSlice("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Server.JWTSecret == "" {
			return errors.New("server.jwt_secret is not set")
		}

		tok, err := server.NewTokenManager(cfg.Server.JWTSecret, ttl).Issue(args[0], roles...)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View migration run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No migrations recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("%s  %s  %-8s  total:%d migrated:%d skipped:%d errors:%d  %s\n",
				shortID(r.ID),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status, r.Total, r.Migrated, r.Skipped, r.Errors,
				duration,
			)
			if r.Error != "" {
				fmt.Printf("          %s\n", r.Error)
			}
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSecretCmd)
	configSecretCmd.AddCommand(configSecretSetCmd)

	// records subcommands
	recordsCmd.AddCommand(recordsMigrateCmd)
	recordsCmd.AddCommand(recordsScanCmd)
	recordsCmd.AddCommand(recordsUploadCmd)

	// object subcommands
	objectCmd.AddCommand(objectURLCmd)
	objectURLCmd.Flags().String("file-name", "", "File name for the Content-Disposition header")
	objectCmd.AddCommand(objectDeleteCmd)

	tokenCmd.AddCommand(tokenIssueCmd)
	tokenIssueCmd.Flags().StringSlice("role", []string{server.RoleStorageAdmin}, "Role claims to grant")
	tokenIssueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(objectCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default from config)")
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
}
