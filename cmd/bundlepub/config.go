package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/bundlepub/internal/config"
	"github.com/ALT-F4-LLC/bundlepub/internal/render"
)

type configInfo struct {
	*config.Config
	User        string `json:"user,omitempty"`
	PasswordSet bool   `json:"password_set"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the resolved bundlepub configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{
			Config:      cfg,
			User:        os.Getenv(config.EnvPrefix + "_USER"),
			PasswordSet: os.Getenv(config.EnvPrefix+"_PASSWORD") != "",
		}
		if cfg.File == "" {
			w.Info("No config file; using defaults and %s_* environment variables.", config.EnvPrefix)
		}

		w.Success(info, formatConfigHuman(info))
		return nil
	},
}

func formatEnvValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func configRows(info configInfo) [][2]string {
	c := info.Config
	password := "(not set)"
	if info.PasswordSet {
		password = "(set)"
	}
	file := c.File
	if file == "" {
		file = "(none)"
	}
	return [][2]string{
		{"Config file:", file},
		{"Tracker URL:", c.Tracker.BaseURL},
		{"Timeout:", c.Tracker.Timeout.String()},
		{"Comment prefix:", fmt.Sprintf("%q", c.Tracker.CommentPrefix)},
		{"Fields:", strings.Join(c.Tracker.Fields.All(), ", ")},
		{"Bundle suffix:", c.Bundle.Suffix},
		{"Metadata file:", c.Bundle.MetadataFile},
		{"Max entry size:", humanize.IBytes(uint64(c.Bundle.MaxEntryBytes))},
		{"Download dir:", c.Paths.DownloadDir},
		{"Work root:", c.Paths.WorkRoot},
		{"Publish root:", c.Paths.PublishRoot},
		{"Log level:", c.Log.Level},
		{config.EnvPrefix + "_USER:", formatEnvValue(info.User)},
		{config.EnvPrefix + "_PASSWORD:", password},
	}
}

func formatConfigHuman(info configInfo) string {
	rows := configRows(info)
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	if !render.ColorsEnabled() {
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = fmt.Sprintf("%-*s %s", width, r[0], r[1])
		}
		return strings.Join(lines, "\n")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(width)
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	lines := []string{headerStyle.Render("Bundlepub Configuration"), ""}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %s %s", keyStyle.Render(r[0]), valStyle.Render(r[1])))
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(configCmd)
}
