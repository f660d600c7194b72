package main

import (
	"github.com/autom8ter/patchkit"
	"github.com/autom8ter/patchkit/errors"
	"github.com/spf13/cobra"
)

func recordsCmd(g *globals) *cobra.Command {
	var (
		collection string
		field      string
		value      string
		set        []string
		timestamp  string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "patch every record in a collection whose field equals a value",
		Example: `  patchkit records --driver firestore --param project_id=my-project \
    --collection users --field email --value test@seller.com \
    --set role=seller --timestamp updatedAt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := g.config()
			if err != nil {
				return err
			}
			fields, err := pairs("--set", set)
			if err != nil {
				return err
			}
			plan := patchkit.RecordPlan{
				Collection: collection,
				Where:      patchkit.Where{Field: field, Value: typed(value, asJSON)},
				Set:        map[string]any{},
				Timestamp:  timestamp,
			}
			for k, v := range fields {
				plan.Set[k] = typed(v, asJSON)
			}
			runner, flush, err := g.runner(cfg)
			if err != nil {
				return err
			}
			defer flush()
			s, err := cfg.StoreOpener()(ctx)
			if err != nil {
				return errors.Wrap(err, errors.Setup, "")
			}
			defer s.Close()
			_, err = runner.PatchRecords(ctx, s, plan)
			return err
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to patch")
	cmd.Flags().StringVar(&field, "field", "", "field to match (dot notation for nested fields)")
	cmd.Flags().StringVar(&value, "value", "", "value the field must equal")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field=value to write (repeatable)")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "field set to the store's current time")
	cmd.Flags().BoolVar(&asJSON, "json-values", false, "decode --value and --set values as json when possible")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}
