package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/territory"
	"github.com/capx-network/capmap/internal/infra/region"
)

func init() {
	regionsCmd.Flags().BoolVar(&regionsCountries, "countries", false, "List the country codes of each region")
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(resolveCmd)
}

var regionsCountries bool

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the eight macro-regions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows [][]string
		for _, r := range region.All() {
			sel, _ := colorscale.SelectedColor(r.ID)
			rows = append(rows, []string{
				string(r.ID),
				r.FullName,
				strconv.Itoa(len(r.CountryCodes)),
				swatch(sel),
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, table([]string{"ID", "NAME", "COUNTRIES", "SELECTED"}, rows))

		if regionsCountries {
			for _, r := range region.All() {
				fmt.Fprintf(out, "\n%s\n%s\n", headerStyle.Render(string(r.ID)), strings.Join(r.CountryCodes, " "))
			}
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Resolve territory names to macro-regions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, len(args))
		for i, name := range args {
			id, ok := territory.ResolveRegion(name)
			got := mutedStyle.Render("-")
			if ok {
				got = string(id)
			}
			rows[i] = []string{name, territory.Normalize(name), got}
		}
		fmt.Fprint(cmd.OutOrStdout(), table([]string{"NAME", "KEY", "REGION"}, rows))
		return nil
	},
}
