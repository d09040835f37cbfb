package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List configured categories and datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		for _, name := range cat.Categories() {
			sources, err := cat.Sources(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", bold(name), faint(fmt.Sprintf("(%d feeds)", len(sources))))
			for _, src := range sources {
				fmt.Printf("  %-24s %s\n", src.ID, faint(src.URL))
			}
		}

		if datasets := cat.Datasets(); len(datasets) > 0 {
			fmt.Println()
			fmt.Println(bold("datasets"))
			for _, name := range datasets {
				u, _ := cat.Dataset(name)
				fmt.Printf("  %-24s %s\n", name, faint(u))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
