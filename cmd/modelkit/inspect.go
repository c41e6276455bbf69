package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/modelkit/adapters/idgen"
	"github.com/artpar/modelkit/core/events"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/schema"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		schemaFile string
		sets       []string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Build a model from a schema file and show its values",
		Long: `Instantiate a model from one schema file, apply assignments in order,
then print the public values and the validation outcome.

Examples:
  modelkit inspect --schema schemas/article.yaml
  modelkit inspect --schema schemas/article.yaml --set title=Hello --set views=3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			s, err := schema.ParseFile(schemaFile)
			if err != nil {
				return err
			}
			m, err := model.New(s, fieldtype.Standard(idgen.UUID{}), nil)
			if err != nil {
				return err
			}

			var changed []string
			m.OnField(strings.Join(s.Fields.Names(), " "), events.EventChange, func(e events.Event) error {
				changed = append(changed, e.Field)
				return nil
			})

			for _, kv := range sets {
				name, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want name=value", kv)
				}
				known, err := m.Set(name, value)
				if err != nil {
					return fmt.Errorf("set %s: %w", name, err)
				}
				if !known {
					return fmt.Errorf("set %s: %w", name, model.ErrUnknownField)
				}
			}
			m.Flush()
			defer m.Dispose()

			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", data)
			if len(changed) > 0 {
				fmt.Fprintf(out, "changed: %s\n", strings.Join(changed, ", "))
			}

			err = m.Validate(cmd.Context())
			if err == nil {
				fmt.Fprintf(out, "  %s %s is valid\n", checkMark, s.Name)
				return nil
			}

			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			for _, f := range verr.Fields {
				var msgs []string
				for _, v := range f.Descriptor().Violations(f.Get()) {
					msgs = append(msgs, v.Message)
				}
				if len(msgs) == 0 {
					msgs = []string{"rejected by field type"}
				}
				fmt.Fprintf(out, "  %s %s: %s\n", crossMark, f.Name(), strings.Join(msgs, "; "))
			}
			return verr
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "schema file to instantiate")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "assign a field, as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
