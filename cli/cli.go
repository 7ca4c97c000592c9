// Package cli implements realmctl, an administrative command-line front end
// over the realm service. It talks to the core directly (no wire protocol:
// that surface is out of scope per the core's design), authenticating every
// invocation as a user caller for the named realm, except `branch complete`,
// which authenticates with the branch's own token as its worker.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcfs/realm/internal/blobstore"
	"github.com/arcfs/realm/internal/config"
	"github.com/arcfs/realm/internal/delegate"
	"github.com/arcfs/realm/internal/realm"
	"github.com/arcfs/realm/internal/realmauth"
	"github.com/arcfs/realm/internal/realmlog"
)

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "realmctl",
	Short: "realmctl administers a content-addressed realm store",
	Long:  `realmctl is the administrative CLI for the realm service: upload and browse realm-scoped files and directories, and manage branch delegates.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Printf("realmctl version %s\n", Version)
			os.Exit(0)
		}
		cmd.Help()
	},
}

var (
	showVersion bool
	configPath  string
	dataDir     string
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&showVersion, "version", false, "print realmctl's version")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a realm config JSON file, merged over the global and default config")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".realmctl", "directory holding the local delegate database and, for the filesystem backend, blob bodies")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)

	rootCmd.AddCommand(branchCmd)
	branchCmd.AddCommand(branchCreateCmd, branchListCmd, branchRevokeCmd, branchCompleteCmd)

	rootCmd.AddCommand(configCmd)
}

// Execute runs realmctl's root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// environment bundles the realm service and its underlying resources for a
// single CLI invocation.
type environment struct {
	service *realm.Service
	close   func() error
}

func openEnvironment() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	var blobs blobstore.Store
	var closeBlobs func()
	switch cfg.Storage.Kind {
	case config.StorageFilesystem:
		base := cfg.Storage.BasePath
		if base == "" {
			base = filepath.Join(dataDir, "blobs")
		}
		fileStore, err := blobstore.NewFile(base)
		if err != nil {
			return nil, fmt.Errorf("open blob store at %s: %w", base, err)
		}
		blobs = fileStore
		closeBlobs = fileStore.Close
	default:
		blobs = blobstore.NewMemory()
	}

	delegates, err := delegate.OpenBoltStore(filepath.Join(dataDir, "delegates.db"))
	if err != nil {
		return nil, fmt.Errorf("open delegate store: %w", err)
	}

	level := realmlog.InfoLevel
	if verbose {
		level = realmlog.DebugLevel
	}
	logger := realmlog.New(realmlog.Config{Level: level})

	svc := realm.New(blobs, delegates, realm.Options{
		MaxFileBytes: cfg.Limits.MaxFileBytes,
		MaxBranchTTL: cfg.MaxBranchTTL(),
		Log:          logger,
	})

	return &environment{service: svc, close: func() error {
		if closeBlobs != nil {
			closeBlobs()
		}
		return delegates.Close()
	}}, nil
}

func (e *environment) Close() {
	if e.close != nil {
		_ = e.close()
	}
}

// adminCaller authenticates realmctl's invocations as the named realm's
// user, carrying full capability.
func adminCaller(realmID string) *realmauth.Caller {
	return &realmauth.Caller{Kind: realmauth.KindUser, RealmID: realmID, UserID: realmID}
}
