package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"filehost/internal/app"
	"filehost/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a FileHostApp. The caller must defer a.Close().
func newApp(cmd *cobra.Command) (*app.FileHostApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := app.Options{Level: slog.LevelInfo}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.Level = slog.LevelDebug
	}
	a, err := app.NewFileHostApp(cmd.Context(), cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassword prompts on the terminal without echo.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword(prompt string) (string, error) {
	first, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}
	second, err := readPassword("Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

var rootCmd = &cobra.Command{
	Use:          "filehost",
	Short:        "Personal file hosting service",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
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

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Upload Dir:  %s\n", cfg.UploadDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Instance ID:  %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Upload Dir:   %s\n", cfg.UploadDir)
		fmt.Printf("Listen:       %s\n", cfg.Server.Addr)
		fmt.Printf("Upload Limit: %d files of %s\n", cfg.Limits.MaxFiles, humanize.IBytes(uint64(cfg.Limits.MaxFileSize)))
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Protection:   %s\n", cfg.Protection.Type)
		mirror := cfg.Mirror.Type
		if cfg.Mirror.Type != "none" && cfg.Mirror.Encrypt {
			mirror += " (encrypted)"
		}
		fmt.Printf("Mirror:       %s\n", mirror)
		return nil
	},
}

// reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the metadata store with the upload directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Reconcile(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconciling: %w", err)
		}
		fmt.Printf("Kept %d, pruned %d, discovered %d record(s)\n", report.Kept, report.Pruned, report.Discovered)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show file and disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Files:      %d\n", stats.TotalFiles)
		fmt.Printf("Total size: %s\n", humanize.IBytes(uint64(stats.TotalSize)))
		fmt.Printf("Disk used:  %s\n", humanize.IBytes(stats.DiskUsed))
		fmt.Printf("Disk free:  %s\n", humanize.IBytes(stats.DiskAvailable))
		return nil
	},
}

// dir command
var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage directories",
}

var dirCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		protect, _ := cmd.Flags().GetBool("protect")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var password string
		if protect {
			if password, err = readNewPassword("Directory password: "); err != nil {
				return err
			}
		}

		dir, err := a.CreateDirectory(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		location, err := a.DirectoryPath(dir)
		if err != nil {
			return err
		}
		if protect {
			fmt.Printf("Created protected directory: %s (%s)\n", dir, location)
		} else {
			fmt.Printf("Created directory: %s (%s)\n", dir, location)
		}
		return nil
	},
}

var dirDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a directory and every file under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		protected, err := a.IsProtected(args[0])
		if err != nil {
			return err
		}
		var password string
		if protected {
			if password, err = readPassword("Password: "); err != nil {
				return err
			}
		}

		if err := a.DeleteDirectory(cmd.Context(), args[0], password); err != nil {
			return fmt.Errorf("deleting directory: %w", err)
		}
		fmt.Printf("Deleted directory: %s\n", args[0])
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a consistent copy of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Database backed up to %s\n", args[0])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage mirror encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the mirror encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readNewPassword("Key passphrase: ")
		if err != nil {
			return err
		}
		if err := app.InitKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Work with mirrored copies",
}

var mirrorDecryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt an encrypted mirrored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassword("Key passphrase: ")
		if err != nil {
			return err
		}

		if out == "" {
			out = app.DecryptedName(args[0])
		}
		if err := app.DecryptFile(cfg, passphrase, args[0], out); err != nil {
			return err
		}
		fmt.Printf("Decrypted to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// dir subcommands
	dirCmd.AddCommand(dirCreateCmd)
	dirCreateCmd.Flags().Bool("protect", false, "Prompt for a password protecting the directory")
	dirCmd.AddCommand(dirDeleteCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbBackupCmd)

	keysCmd.AddCommand(keysInitCmd)

	mirrorCmd.AddCommand(mirrorDecryptCmd)
	mirrorDecryptCmd.Flags().StringP("output", "o", "", "Output path (default: FILE without .age)")

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(mirrorCmd)
}
