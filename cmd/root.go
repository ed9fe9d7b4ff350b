package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/meshsim/core/config"
	"github.com/adalundhe/meshsim/core/logging"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "meshsim.yaml"

var (
	rootConfigPath string
	rootAssetRoot  string
	rootLogLevel   string
	rootLogFormat  string
	rootJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "meshsim",
	Short: "meshsim - 3D mesh catalog and similarity search",
	Long: `meshsim lists a directory of OFF meshes laid out as <category>/<split>/<file>
and ranks them by similarity to a query mesh using external k-d tree and
octree scorers.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfigPath, "config", "", "Path to a YAML config file (default ./"+DefaultConfigFile+")")
	flags.StringVar(&rootAssetRoot, "root", "", "Asset directory (overrides asset_root)")
	flags.StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&rootLogFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&rootJSON, "json", false, "Output results as JSON")
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig layers the config file, the environment and the global flags.
func loadConfig() (*config.Config, error) {
	path := rootConfigPath
	if path == "" {
		path = DefaultConfigFile
	}

	m := config.NewManager(path)
	if err := m.Load(); err != nil {
		return nil, err
	}
	err := m.Apply(func(c *config.Config) {
		if rootAssetRoot != "" {
			c.AssetRoot = rootAssetRoot
		}
		if rootLogLevel != "" {
			c.Log.Level = rootLogLevel
		}
		if rootLogFormat != "" {
			c.Log.Format = rootLogFormat
		}
	})
	if err != nil {
		return nil, err
	}
	return m.Get(), nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	opts := cfg.LogOptions()
	opts.Writer = cmd.ErrOrStderr()
	return logging.New(opts)
}
