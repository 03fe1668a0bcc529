package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/models"
)

func newCategoriesCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect the category table",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "category YAML file (built-in table when empty)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories in classification order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := categorizer.NewStore(file, zerolog.Nop())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAPPLIES TO\tKEYWORDS")
			for _, c := range cats.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Name, appliesTo(c), len(c.Keywords))
			}
			return tw.Flush()
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Print the category table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := categorizer.NewStore(file, zerolog.Nop())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string][]models.Category{"categories": cats.List()}); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(list, export)
	return cmd
}

func appliesTo(c models.Category) string {
	if len(c.ApplicableFor) == 0 {
		return "ALL"
	}
	dirs := make([]string, len(c.ApplicableFor))
	for i, d := range c.ApplicableFor {
		dirs[i] = string(d)
	}
	return strings.Join(dirs, ",")
}
