package main

import (
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/autom8ter/patchkit"
	"github.com/autom8ter/patchkit/errors"
	"github.com/spf13/cobra"
)

var planTemplate = `# patchkit plan created {{ now | date "2006-01-02" }}
# run it with: patchkit apply -f {{ .path | base }}{{ if .driver }} --driver {{ .driver }}{{ end }}
records:
  - collection: {{ .collection }}
    where:
      field: {{ .field }}
      value: {{ .value | quote }}
    set:
      role: seller
    timestamp: updatedAt
settings:
  - file: {{ .project }}
    section:
      field: name
      value: {{ .section | default "Debug" }}
    set:
      COMPILER_INDEX_STORE_ENABLE: "NO"
    append:
      GCC_PREPROCESSOR_DEFINITIONS:
        values:
{{- range .defines }}
          - {{ . | quote }}
{{- end }}
        seed:
          - "$(inherited)"
`

func initCmd(g *globals) *cobra.Command {
	var (
		path       string
		collection string
		field      string
		value      string
		project    string
		section    string
		defines    []string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create an example plan file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.Setup, "%s already exists (use --force to overwrite)", path)
			}
			tmpl, err := template.New("plan").Funcs(sprig.TxtFuncMap()).Parse(planTemplate)
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to parse plan template")
			}
			f, err := os.Create(path)
			if err != nil {
				return errors.Wrap(err, errors.Setup, "failed to create plan")
			}
			err = tmpl.Execute(f, map[string]any{
				"path":       path,
				"driver":     g.driver,
				"collection": collection,
				"field":      field,
				"value":      value,
				"project":    project,
				"section":    section,
				"defines":    defines,
			})
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to render plan")
			}
			if _, err := patchkit.LoadPlanFile(path); err != nil {
				return errors.Wrap(err, errors.Internal, "rendered plan is invalid")
			}
			fmt.Printf("new plan created: %v\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "patchkit.yaml", "path of the plan file")
	cmd.Flags().StringVarP(&collection, "collection", "c", "users", "collection to patch")
	cmd.Flags().StringVar(&field, "field", "email", "field to match")
	cmd.Flags().StringVar(&value, "value", "test@seller.com", "value the field must equal")
	cmd.Flags().StringVar(&project, "project", "ios/Runner.xcodeproj/project.pbxproj", "project file to patch")
	cmd.Flags().StringVar(&section, "section", "Debug", "build configuration to patch")
	cmd.Flags().StringSliceVar(&defines, "define", []string{"GRPC_ARES=0"}, "preprocessor definitions to append")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing plan")
	return cmd
}
