package main

import (
	"fmt"
	"io"

	"github.com/lychee-technology/dataeditor/internal"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every schema and its seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("schema-dir")
			if dir == "" {
				config, err := loadConfig()
				if err != nil {
					return err
				}
				dir = config.SchemaDirectory
			}
			return runValidate(cmd.OutOrStdout(), dir)
		},
	}
	cmd.Flags().StringP("schema-dir", "s", getenvDefault("SCHEMA_DIR", ""), "Schema directory (default: schemaDirectory of the config)")
	RootCmd.AddCommand(cmd)
}

// runValidate compiles every schema and checks its seed records against it.
// It reports all problems before failing.
func runValidate(out io.Writer, dir string) error {
	registry, err := internal.NewFileSchemaRegistry(dir)
	if err != nil {
		return err
	}

	failures := 0
	for _, id := range registry.ListSchemas() {
		schema, err := registry.GetSchema(id)
		if err != nil {
			return err
		}
		validator, err := internal.NewValidator(*schema)
		if err != nil {
			failures++
			fmt.Fprintf(out, "FAIL %s: %v\n", id, err)
			continue
		}

		seed := registry.SeedData(id)
		seen := map[string]int{}
		bad := 0
		for i, record := range seed {
			normalized, err := validator.Test(record)
			if err != nil {
				bad++
				fmt.Fprintf(out, "FAIL %s seed[%d]: %v\n", id, i, err)
				continue
			}
			key := internal.RecordKey(normalized, schema.PrimaryKey)
			if first, dup := seen[key]; dup {
				bad++
				fmt.Fprintf(out, "FAIL %s seed[%d]: key %s already used by seed[%d]\n", id, i, key, first)
				continue
			}
			seen[key] = i
		}
		if bad > 0 {
			failures++
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d seed records)\n", id, len(seed))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d schemas failed validation", failures, len(registry.ListSchemas()))
	}
	return nil
}
