package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/capx-network/capmap/internal/daemon"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/logger"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// loadConfig reads the daemon config and applies persistent flags.
func loadConfig() (daemon.Config, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg daemon.Config) zerolog.Logger {
	l := logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger.SetGlobalLogger(l)
	return l
}

// openDaemon wires the services without serving. Callers must Close.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.NewWithConfig(cfg, newLogger(cfg))
}

// readDataset decodes a JSON or YAML dataset file by extension.
func readDataset(path string) (domain.Dataset, error) {
	var ds domain.Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &ds)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ds)
	default:
		return ds, fmt.Errorf("%w: %q (want .json, .yaml or .yml)", domain.ErrUnsupportedSource, ext)
	}
	if err != nil {
		return ds, fmt.Errorf("decode %s: %w", path, err)
	}
	return ds, nil
}

// swatch renders a color block followed by its hex code.
func swatch(c domain.RGB) string {
	block := lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("    ")
	return block + " " + c.Hex()
}

// table renders rows with padded columns. Widths ignore ANSI sequences.
func table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var sb strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if style != nil {
				cell = style.Render(cell)
			}
			sb.WriteString(cell)
			if i < len(cells)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
			}
		}
		sb.WriteString("\n")
	}
	line(headers, &headerStyle)
	for _, row := range rows {
		line(row, nil)
	}
	return sb.String()
}
