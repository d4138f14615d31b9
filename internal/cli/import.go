package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capx-network/capmap/internal/app/territory"
	"github.com/capx-network/capmap/internal/daemon"
	"github.com/capx-network/capmap/internal/infra/sqlite"
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of imports to show")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyLimit int

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a dataset from a JSON or YAML file",
	Long: `Replace the stored dataset with FILE. Territory names that do not match
any macro-region are reported and ignored by every aggregate.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	ds, err := readDataset(path)
	if err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	if ds.UpdatedAt.IsZero() {
		ds.UpdatedAt = time.Now().UTC()
	}

	db, err := sqlite.Open(daemon.Home())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ImportDataset(ds, path); err != nil {
		return err
	}

	mapped, unresolved := territory.BuildRegionMap(ds.Territories)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d territories (%d mapped to regions) from %s\n",
		len(ds.Territories), len(mapped), path)
	if len(unresolved) > 0 {
		names := make([]string, len(unresolved))
		for i, id := range unresolved {
			names[i] = fmt.Sprintf("%s (%s)", ds.Territories[id], id)
		}
		fmt.Fprintf(out, "Unresolved: %s\n", mutedStyle.Render(strings.Join(names, ", ")))
	}
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent dataset imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlite.Open(daemon.Home())
		if err != nil {
			return err
		}
		defer db.Close()

		imports, err := db.ListImports(historyLimit)
		if err != nil {
			return err
		}
		if len(imports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No datasets imported. Run 'capmap import <file>' to get started.")
			return nil
		}
		rows := make([][]string, len(imports))
		for i, imp := range imports {
			source := imp.Source
			if source == "" {
				source = "api"
			}
			rows[i] = []string{
				strconv.FormatInt(imp.ID, 10),
				imp.ImportedAt.Local().Format("2006-01-02 15:04"),
				strconv.Itoa(imp.Territories),
				source,
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), table([]string{"ID", "IMPORTED", "TERRITORIES", "SOURCE"}, rows))
		return nil
	},
}
