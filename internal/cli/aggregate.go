package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/capx-network/capmap/internal/app/aggregate"
	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/region"
)

func init() {
	aggregateCmd.Flags().StringVar(&aggMode, "mode", "users", "View mode: users, languages, capacities")
	aggregateCmd.Flags().StringVar(&aggFilter, "filter", aggregate.All, "Language or capacity id (languages/capacities modes)")
	aggregateCmd.Flags().BoolVar(&aggDark, "dark", false, "Use the dark theme colors")
	rootCmd.AddCommand(aggregateCmd)

	topCmd.Flags().StringVar(&topMode, "mode", "languages", "Ranking: languages or capacities")
	topCmd.Flags().IntVarP(&topN, "limit", "n", aggregate.DefaultTopN, "Number of entries")
	rootCmd.AddCommand(topCmd)
}

var (
	aggMode   string
	aggFilter string
	aggDark   bool

	topMode string
	topN    int
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Show per-region totals and map colors",
	Args:  cobra.NoArgs,
	RunE:  runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	mode, err := domain.ParseViewMode(aggMode)
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	agg, err := d.Dashboard.Aggregate(mode, aggFilter)
	if err != nil {
		return err
	}
	palette := colorscale.Palette{Mode: mode, Theme: domain.ThemeFor(aggDark)}

	headers := []string{"REGION", "NAME", "COUNT"}
	if mode == domain.ViewCapacities {
		headers = append(headers, "AVAILABLE", "WANTED")
	}
	headers = append(headers, "COLOR")

	var rows [][]string
	for _, r := range region.All() {
		n, ok := agg.Count(r.ID)
		count := mutedStyle.Render("-")
		if ok {
			count = strconv.Itoa(n)
		}
		row := []string{string(r.ID), r.FullName, count}
		if mode == domain.ViewCapacities {
			c := agg.Capacities[r.ID]
			row = append(row, strconv.Itoa(c.Available), strconv.Itoa(c.Wanted))
		}
		row = append(row, swatch(palette.Fill(r.ID, n, ok, agg.Max, domain.Selection{})))
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, table(headers, rows))
	fmt.Fprintf(out, "\nmode %s, filter %s, max %d, dataset v%d\n", agg.Mode, agg.Filter, agg.Max, agg.Version)
	if unresolved := d.Dashboard.Unresolved(); len(unresolved) > 0 {
		fmt.Fprintf(out, "%s\n", mutedStyle.Render(fmt.Sprintf("%d territories not mapped to any region", len(unresolved))))
	}
	return nil
}

var topCmd = &cobra.Command{
	Use:   "top REGION",
	Short: "Rank the languages or capacities of a region",
	Args:  cobra.ExactArgs(1),
	RunE:  runTop,
}

func runTop(cmd *cobra.Command, args []string) error {
	id, err := domain.ParseRegionID(args[0])
	if err != nil {
		return err
	}
	mode, err := domain.ParseViewMode(topMode)
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	items, err := d.Dashboard.Top(id, mode, topN)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintf(out, "No %s recorded for %s.\n", mode, id)
		return nil
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{strconv.Itoa(i + 1), it.Name, it.ID, strconv.Itoa(it.Count)}
	}
	fmt.Fprint(out, table([]string{"#", "NAME", "ID", "COUNT"}, rows))
	return nil
}
