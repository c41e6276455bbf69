package main

import (
	"fmt"

	"github.com/artpar/modelkit/adapters/idgen"
	"github.com/artpar/modelkit/adapters/sqlite"
	"github.com/artpar/modelkit/config"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/registry"
	"github.com/artpar/modelkit/core/schema"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newValidateCmd(cfgFile *string) *cobra.Command {
	var (
		schemasDir    string
		checkDatabase bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and schemas before deployment",
		Long: `Validate the modelkit configuration and every schema file.

Checks:
  - Config is valid (file, or MODELKIT_* environment when no file exists)
  - Every schema file parses
  - Every field type is registered
  - Model names are unique
  - Database is writable (optional)

Examples:
  modelkit validate
  modelkit validate --schemas ./schemas
  modelkit validate --config /etc/modelkit/config.yaml --check-database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := config.LoadWithFallback(*cfgFile)
			if err != nil {
				fmt.Fprintf(out, "  %s Config valid\n", crossMark)
				return fmt.Errorf("config error: %w", err)
			}
			fmt.Fprintf(out, "  %s Config valid\n", checkMark)

			if schemasDir == "" {
				schemasDir = cfg.Schemas.Dir
			}

			models, err := schema.ParseDir(schemasDir)
			if err != nil {
				fmt.Fprintf(out, "  %s Schemas parse (%s)\n", crossMark, schemasDir)
				return fmt.Errorf("schema error: %w", err)
			}
			fmt.Fprintf(out, "  %s Schemas parse (%s)\n", checkMark, schemasDir)

			classes := registry.New(fieldtype.Standard(idgen.UUID{}))
			if err := classes.Replace(models); err != nil {
				fmt.Fprintf(out, "  %s Field types resolve\n", crossMark)
				return fmt.Errorf("schema error: %w", err)
			}
			for _, c := range classes.List() {
				fmt.Fprintf(out, "  %s Model %s (%d fields)\n", checkMark, c.Name(), len(c.Descriptors()))
			}

			if checkDatabase && cfg.Database.Driver == "sqlite" {
				if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
					fmt.Fprintf(out, "  %s Database writable\n", crossMark)
					fmt.Fprintf(out, "      Error: %v\n", err)
				} else {
					fmt.Fprintf(out, "  %s Database writable\n", checkMark)
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration is valid.")
			return nil
		},
	}

	cmd.Flags().StringVar(&schemasDir, "schemas", "", "schema directory (default: schemas.dir from config)")
	cmd.Flags().BoolVar(&checkDatabase, "check-database", false, "check if database is writable")
	return cmd
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}
