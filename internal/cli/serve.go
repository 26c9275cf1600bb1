package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidesmith/slidesmith/internal/api"
	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/pkg/cache"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		cfgPath string
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the slide insertion HTTP API",
		Long: `Start the HTTP API server. Endpoints:

  POST /api/add-slide        Insert a populated slide into an uploaded deck
  POST /api/debug-layouts    Reflect a template's layouts and placeholders
  POST /api/get-slide-count  Count the slides of an uploaded deck
  GET  /api/health           Liveness probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr != "" {
				cfg.Addr = addr
			}

			var store cache.Cache
			if noCache {
				store = cache.NewNullCache()
			} else if cfg.CacheDir != "" {
				fileCache, err := cache.NewFileCache(cfg.CacheDir)
				if err != nil {
					return fmt.Errorf("create cache dir: %w", err)
				}
				store = fileCache
			} else {
				store = newCache(false)
			}
			defer store.Close()

			printInfo("Listening on %s", StyleHighlight.Render(cfg.Addr))
			return api.New(cfg, c.Logger, store).Start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable inspection caching")

	return cmd
}
