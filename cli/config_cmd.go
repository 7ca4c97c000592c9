package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arcfs/realm/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get and set the core's recognized configuration options",
	Long: `Get and set realmctl's configuration.

With no arguments, prints every key listed below. With one argument,
prints that option's value. With two arguments, sets it.

Keys handled here: storage.kind, storage.base_path, auth.max_branch_ttl_ms,
limits.max_file_bytes. auth.shared_secret is read from the config files
but is neither printed nor set by this command.

Configuration is layered: a global file (~/.realmconfig), overridden by
--config if given.`,
	RunE: runConfig,
}

var configGlobal bool

func init() {
	configCmd.Flags().BoolVar(&configGlobal, "global", false, "write to the global config file instead of --config's path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		return listConfig()
	case 1:
		return getConfigValue(args[0])
	case 2:
		return setConfigValue(args[0], args[1])
	default:
		return fmt.Errorf("config takes at most 2 arguments, got %d", len(args))
	}
}

func targetPath() string {
	if configGlobal || configPath == "" {
		return ""
	}
	return configPath
}

func listConfig() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Printf("storage.kind=%s\n", cfg.Storage.Kind)
	fmt.Printf("storage.base_path=%s\n", cfg.Storage.BasePath)
	fmt.Printf("auth.max_branch_ttl_ms=%d\n", cfg.Auth.MaxBranchTTLMs)
	fmt.Printf("limits.max_file_bytes=%d\n", cfg.Limits.MaxFileBytes)
	return nil
}

func getConfigValue(key string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	switch key {
	case "storage.kind":
		fmt.Println(cfg.Storage.Kind)
	case "storage.base_path":
		fmt.Println(cfg.Storage.BasePath)
	case "auth.max_branch_ttl_ms":
		fmt.Println(cfg.Auth.MaxBranchTTLMs)
	case "limits.max_file_bytes":
		fmt.Println(cfg.Limits.MaxFileBytes)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setConfigValue(key, value string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	switch key {
	case "storage.kind":
		cfg.Storage.Kind = config.StorageKind(value)
	case "storage.base_path":
		cfg.Storage.BasePath = value
	case "auth.max_branch_ttl_ms":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("auth.max_branch_ttl_ms must be an integer: %w", err)
		}
		cfg.Auth.MaxBranchTTLMs = n
	case "limits.max_file_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("limits.max_file_bytes must be an integer: %w", err)
		}
		cfg.Limits.MaxFileBytes = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	path := targetPath()
	if path == "" {
		home, err := config.GlobalPath()
		if err != nil {
			return err
		}
		path = home
	}
	return config.Save(cfg, path)
}
