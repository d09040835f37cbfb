package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raffaelramalhorosa/econdash/internal/catalog"
	"github.com/raffaelramalhorosa/econdash/internal/stream"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <category>",
	Short: "Fetch one category once and print the result",
	Long: `Fetch every feed of one category, exactly as a refresh would, and print
a per-feed summary followed by the newest entries of the merged stream.
Nothing is cached.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		category, err := cat.Resolve(args[0])
		if err != nil {
			return err
		}
		if category == catalog.All {
			return fmt.Errorf("fetch takes a single category; choose one of: %s", strings.Join(cat.Categories(), ", "))
		}
		sources, err := cat.Sources(category)
		if err != nil {
			return err
		}

		logger := newLogger(os.Stderr, false)
		res := newFetcher(logger).FetchCategory(context.Background(), category, sources)

		failures := make(map[string]string, len(res.Errors))
		for _, line := range res.Errors {
			id, msg, _ := strings.Cut(line, ": ")
			failures[id] = msg
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		fmt.Printf("%s (%d feeds)\n", bold(category), len(sources))
		for _, src := range sources {
			if items, ok := res.Feeds[src.ID]; ok {
				fmt.Printf("  %s %s %d items\n", green("v"), src.Name, len(items))
				continue
			}
			fmt.Printf("  %s %s %s\n", red("x"), src.Name, faint(failures[src.ID]))
		}

		items := stream.Build(res.Feeds, limit)
		if len(items) > 0 {
			fmt.Println()
			for _, it := range items {
				fmt.Printf("  %s  %s %s\n", faint(it.PubDate.Format("2006-01-02 15:04")), it.Title, faint("("+it.Source+")"))
			}
		}

		fmt.Println()
		fmt.Printf("Summary: %d ok, %d failed\n", len(res.Feeds), len(res.Errors))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntP("limit", "n", 10, "number of stream entries to print")
}
