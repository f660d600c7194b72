package main

import (
	"github.com/autom8ter/patchkit"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func settingsCmd(g *globals) *cobra.Command {
	var (
		file    string
		field   string
		value   string
		targets []string
		set     []string
		appends []string
		seeds   []string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "patch the build settings of matching configurations in a project.pbxproj",
		Example: `  patchkit settings --file ios/Runner.xcodeproj/project.pbxproj --section Debug \
    --set COMPILER_INDEX_STORE_ENABLE=NO \
    --append GCC_PREPROCESSOR_DEFINITIONS=GRPC_ARES=0 --seed 'GCC_PREPROCESSOR_DEFINITIONS=$(inherited)'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			plan := patchkit.SettingsPlan{
				File:    file,
				Section: patchkit.SectionMatch{Field: field, Value: value},
				Targets: targets,
				Append:  map[string]patchkit.AppendPlan{},
			}
			replace, err := pairs("--set", set)
			if err != nil {
				return err
			}
			plan.Set = lo.MapValues(replace, func(v string, _ string) any { return v })
			if err := collect("--append", appends, func(k, v string) {
				a := plan.Append[k]
				a.Values = append(a.Values, v)
				plan.Append[k] = a
			}); err != nil {
				return err
			}
			if err := collect("--seed", seeds, func(k, v string) {
				a := plan.Append[k]
				a.Seed = append(a.Seed, v)
				plan.Append[k] = a
			}); err != nil {
				return err
			}
			runner, flush, err := g.runner(cfg)
			if err != nil {
				return err
			}
			defer flush()
			_, err = runner.PatchSettings(cmd.Context(), file, plan)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to project.pbxproj")
	cmd.Flags().StringVar(&field, "section-field", "name", "build configuration field to match")
	cmd.Flags().StringVarP(&value, "section", "s", "", "value the section field must equal, e.g. Debug")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "only patch configurations of these targets ('project' for project level)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "KEY=VALUE to replace (repeatable)")
	cmd.Flags().StringArrayVar(&appends, "append", nil, "KEY=VALUE to add to a list setting if absent (repeatable)")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "KEY=VALUE starting an absent appended list (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

// collect parses repeatable key=value flags, keeping repeated keys in order
func collect(flag string, values []string, fn func(k, v string)) error {
	for _, v := range values {
		kv, err := pairs(flag, []string{v})
		if err != nil {
			return err
		}
		for k, v := range kv {
			fn(k, v)
		}
	}
	return nil
}
