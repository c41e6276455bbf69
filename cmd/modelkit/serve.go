package main

import (
	"fmt"
	"os"

	"github.com/artpar/modelkit/bootstrap"
	"github.com/spf13/cobra"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the modelkit HTTP server.

The server will:
  - Load configuration from modelkit.yaml (or --config)
  - Or load configuration from MODELKIT_* environment variables
  - Register every schema in the schema directory
  - Open the snapshot store and serve records over HTTP

Environment variables:
  MODELKIT_SERVER_PORT      - Server port (default: 8080)
  MODELKIT_DATABASE_DRIVER  - sqlite or memory (default: sqlite)
  MODELKIT_DATABASE_DSN     - Database path (default: modelkit.db)
  MODELKIT_SCHEMAS_DIR      - Schema directory (default: schemas)
  MODELKIT_SCHEMAS_WATCH    - Reload schemas when files change
  MODELKIT_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  modelkit serve
  modelkit serve --config /etc/modelkit/config.yaml
  MODELKIT_DATABASE_DRIVER=memory modelkit serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*cfgFile); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Running with environment variables (no config file)")
			}

			app, err := bootstrap.New(bootstrap.Options{
				ConfigPath: *cfgFile,
				Version:    version,
			})
			if err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}

			// Blocks until shutdown.
			return app.Run(cmd.Context())
		},
	}
}
