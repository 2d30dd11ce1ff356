package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"doxnav/internal/pipeline"
	"doxnav/internal/storage"

	"github.com/spf13/cobra"
)

var scanForce bool

var scanCmd = &cobra.Command{
	Use:   "scan [roots...]",
	Short: "Discover Doxygen sites under the roots and catalogue their navigation trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		roots := args
		if len(roots) == 0 {
			roots = cfg.Scan.Roots
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("📂 Scanning %s\n", strings.Join(roots, ", "))
		scan := pipeline.NewScan(store, newCrawler(cfg), lintOptions(cfg))
		scan.ReportPath = cfg.Scan.Report
		if _, err := scan.Run(cmd.Context(), roots, scanForce); err != nil {
			return err
		}
		fmt.Printf("🎉 Scan complete! Database: %s\n", cfg.Database.Path)
		return nil
	},
}

var (
	updateBase string
	updateDir  string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rescan only the sites whose navigation scripts changed since a git ref",
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

		scan := pipeline.NewScan(store, newCrawler(cfg), lintOptions(cfg))
		scan.ReportPath = cfg.Scan.Report
		_, err = pipeline.NewUpdate(scan, updateDir).Run(cmd.Context(), updateBase)
		return err
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search catalogued entry titles",
	Args:  cobra.MinimumNArgs(1),
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

		nodes, err := store.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		return printNodes(cmd.OutOrStdout(), nodes)
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <link>",
	Short: "List catalogued entries that point at a page",
	Args:  cobra.ExactArgs(1),
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

		nodes, err := store.LookupLink(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printNodes(cmd.OutOrStdout(), nodes)
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List catalogued sites",
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

		sites, err := store.ListSites(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DIR\tNODES\tERRORS\tWARNINGS\tSCANNED")
		for _, s := range sites {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", s.Dir, s.NodeCount, s.Errors, s.Warnings, s.ScannedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func printNodes(out io.Writer, nodes []storage.NodeRecord) error {
	if len(nodes) == 0 {
		fmt.Fprintln(out, "No matching entries.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, n := range nodes {
		link := "-"
		if n.Link != nil {
			link = *n.Link
		}
		crumbs := append(append([]string{}, n.Breadcrumb...), n.Title)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.Site, n.Path, strings.Join(crumbs, " > "), link)
	}
	return w.Flush()
}

func init() {
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "Re-catalogue sites even when their content hash is unchanged")
	updateCmd.Flags().StringVar(&updateBase, "base", "HEAD", "Git ref to diff the working tree against")
	updateCmd.Flags().StringVar(&updateDir, "dir", ".", "Directory inside the git repository")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum number of results")
}
