package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/capx-network/capmap/internal/app/mapview"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/render"
)

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderOpts.style, "style", "", "Map style: vector or flat (default from config)")
	f.StringVarP(&renderOpts.out, "out", "o", "-", "Output file, - for stdout")
	f.StringVar(&renderOpts.mode, "mode", "users", "View mode: users, languages, capacities")
	f.StringVar(&renderOpts.filter, "filter", "", "Language or capacity id")
	f.StringVar(&renderOpts.selected, "selected", "", "Region to select")
	f.StringVar(&renderOpts.hovered, "hovered", "", "Region to hover")
	f.BoolVar(&renderOpts.dark, "dark", false, "Use the dark theme")
	f.BoolVar(&renderOpts.mobile, "mobile", false, "Use the mobile aspect ratio")
	f.IntVar(&renderOpts.width, "width", mapview.DefaultViewportWidth, "Viewport width in pixels")
	f.Float64Var(&renderOpts.zoom, "zoom", 1, "Zoom factor (vector style)")
	f.BoolVar(&renderOpts.southUp, "south-up", false, "Rotate the map 180 degrees (flat style)")
	rootCmd.AddCommand(renderCmd)
}

var renderOpts struct {
	style, out, mode, filter string
	selected, hovered        string
	dark, mobile, southUp    bool
	width                    int
	zoom                     float64
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the choropleth map as SVG",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	style := render.Style(renderOpts.style)
	if style == "" {
		style = render.Style(d.Config.Render.DefaultStyle)
	}
	v, err := d.Views.Create(mapview.Options{
		Style:  style,
		Mode:   domain.ViewMode(renderOpts.mode),
		Filter: renderOpts.filter,
		Config: mapview.Config{
			DarkMode:      renderOpts.dark,
			IsMobile:      renderOpts.mobile,
			ViewportWidth: renderOpts.width,
		},
		Zoom:    renderOpts.zoom,
		SouthUp: renderOpts.southUp,
	})
	if err != nil {
		return err
	}
	if renderOpts.selected != "" {
		if err := v.Click(domain.RegionID(renderOpts.selected)); err != nil {
			return err
		}
	}
	if renderOpts.hovered != "" {
		if err := v.Enter(domain.RegionID(renderOpts.hovered)); err != nil {
			return err
		}
	}

	if renderOpts.out == "-" {
		bw := bufio.NewWriter(cmd.OutOrStdout())
		if err := v.Render(cmd.Context(), bw); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	} else if err := writeOutput(renderOpts.out, func(w io.Writer) error {
		return v.Render(cmd.Context(), w)
	}); err != nil {
		return err
	}

	snap, err := v.Snapshot()
	if err != nil {
		return err
	}
	if snap.Shapes == 0 {
		d.Log.Warn().Str("style", string(snap.Options.Style)).Msg("no geometry available; map has no shapes")
	}
	if renderOpts.out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d shapes, %gx%g)\n", renderOpts.out, snap.Shapes, snap.Width, snap.Height)
	}
	return nil
}

// writeOutput creates path and fills it through write. The file is removed
// when writing, flushing or closing fails.
func writeOutput(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	return bw.Flush()
}
