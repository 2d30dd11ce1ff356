package main

import (
	"fmt"
	"log"
	"strings"

	"doxnav/internal/analysis"
	"doxnav/internal/server"
	"doxnav/internal/watch"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-lint a Doxygen HTML directory whenever its navigation scripts change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := watch.NewWatcher(newCrawler(cfg), lintOptions(cfg), cfg.Watch.Debounce)
		fmt.Printf("👀 Watching %s (Ctrl-C to stop)\n", args[0])
		return w.Watch(cmd.Context(), args[0], func(ev watch.Event) {
			if len(ev.Files) > 0 {
				fmt.Printf("🔄 Changed: %s\n", strings.Join(ev.Files, ", "))
			}
			if ev.Err != nil {
				fmt.Printf("❌ %v\n", ev.Err)
				return
			}
			for _, issue := range ev.Report.Issues {
				fmt.Println(issue.String())
			}
			fmt.Printf("📋 %d errors, %d warnings.\n",
				ev.Report.Count(analysis.SeverityError), ev.Report.Count(analysis.SeverityWarning))
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalogue to MCP clients over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		// stdout carries the protocol.
		log.Printf("doxnav MCP server using %s", cfg.Database.Path)
		return server.New(store, newCrawler(cfg), lintOptions(cfg)).Run(cmd.Context())
	},
}
