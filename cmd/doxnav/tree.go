package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doxnav/internal/analysis"
	"doxnav/internal/extractor"
	"doxnav/internal/generator"
	"doxnav/internal/index"
	"doxnav/internal/navtree"
	"doxnav/internal/resolver"

	"github.com/spf13/cobra"
)

var errLintFailed = errors.New("lint reported errors")

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse one navigation script and print it as JSON",
	Long: `Parse one navigation script and print it as JSON.

The dump is not checked against the export schema, so documents that
lint would reject (empty links, blank index keys) are still printed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := extractor.NewExtractor().ParseFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var data []byte
		switch v := parsed.(type) {
		case *navtree.Document:
			data, err = marshalJSON(generator.ExportDocument(v, nil))
		case *navtree.ChildScript:
			data, err = marshalJSON(map[string]any{
				"name":    v.Name,
				"entries": generator.ExportNodes(v.Nodes),
			})
		case *navtree.IndexChunk:
			entries := make(map[string][]int, len(v.Entries))
			for _, e := range v.Entries {
				entries[e.Link] = []int(e.Path)
			}
			data, err = marshalJSON(map[string]any{
				"number":  v.Number,
				"entries": entries,
			})
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

var lintJSON bool

var lintCmd = &cobra.Command{
	Use:   "lint <dir>",
	Short: "Validate the navigation tree of a Doxygen HTML directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report := analysis.Lint(site, lintOptions(cfg))

		out := cmd.OutOrStdout()
		if lintJSON {
			data, err := marshalJSON(report)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
		} else {
			for _, issue := range report.Issues {
				fmt.Fprintln(out, issue.String())
			}
			errCount := report.Count(analysis.SeverityError)
			warnCount := report.Count(analysis.SeverityWarning)
			if errCount == 0 && warnCount == 0 {
				fmt.Fprintf(out, "✅ %s: %d entries, no problems found.\n", site.Dir, navtree.Count(site.Document.Tree))
			} else {
				fmt.Fprintf(out, "📋 %s: %d errors, %d warnings.\n", site.Dir, errCount, warnCount)
			}
		}
		if report.HasErrors() {
			return errLintFailed
		}
		return nil
	},
}

var fmtWrite bool

var fmtCmd = &cobra.Command{
	Use:   "fmt <dir>",
	Short: "List (or with --write, rewrite) navigation scripts not in canonical Doxygen layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(site.ChunkErrors) > 0 {
			return fmt.Errorf("cannot format %s: %w", site.Dir, errors.Join(site.ChunkErrors...))
		}

		files := generator.SiteFiles{Document: site.Document, Chunks: site.Chunks}
		for _, name := range site.Resolved.Names() {
			files.Scripts = append(files.Scripts, site.Resolved.Scripts[name])
		}

		out := cmd.OutOrStdout()
		if !fmtWrite {
			changed, err := nonCanonical(site.Dir, files)
			if err != nil {
				return err
			}
			for _, name := range changed {
				fmt.Fprintln(out, filepath.Join(site.Dir, name))
			}
			return nil
		}

		// Existing chunks are rewritten in place; stale ones are reindex's job.
		files.Chunks = nil
		res, err := generator.WriteSite(site.Dir, files)
		if err != nil {
			return err
		}
		for _, c := range site.Chunks {
			data := generator.IndexChunkBytes(c)
			path := filepath.Join(site.Dir, c.FileName())
			if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
				continue
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return err
			}
			res.Written = append(res.Written, c.FileName())
		}
		for _, name := range res.Written {
			fmt.Fprintf(out, "✍️  %s\n", filepath.Join(site.Dir, name))
		}
		return nil
	},
}

func nonCanonical(dir string, files generator.SiteFiles) ([]string, error) {
	want := map[string][]byte{navtree.DataFileName: generator.DocumentBytes(files.Document)}
	for _, s := range files.Scripts {
		want[navtree.ChildScriptFileName(s.Name)] = generator.ChildScriptBytes(s)
	}
	for _, c := range files.Chunks {
		want[c.FileName()] = generator.IndexChunkBytes(c)
	}

	var changed []string
	for name, data := range want {
		old, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(old, data) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <dir>",
	Short: "Regenerate NAVTREEINDEX and the navtreeindexN.js chunks from the tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		chunks := index.NewIndexer(cfg.Index.ChunkSize).Build(site.Document.Tree, site.Scripts())
		if chunks == nil {
			chunks = []*navtree.IndexChunk{}
		}
		index.Apply(site.Document, chunks)

		res, err := generator.WriteSite(site.Dir, generator.SiteFiles{Document: site.Document, Chunks: chunks})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗂️  %s: %d chunks, %d files written, %d unchanged, %d removed.\n",
			site.Dir, len(chunks), len(res.Written), len(res.Unchanged), len(res.Removed))
		return nil
	},
}

var (
	renderFormat string
	renderInline bool
)

var renderCmd = &cobra.Command{
	Use:   "render <dir>",
	Short: "Render the navigation tree as text, markdown or a mermaid mindmap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := generator.ParseFormat(renderFormat)
		if err != nil {
			return err
		}
		_, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tree := site.Document.Tree
		if renderInline {
			tree = resolver.Expand(tree, site.Scripts())
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), generator.Render(format, tree))
		return err
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Export a site's navigation data, child scripts included, as schema-checked JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := generator.ExportJSON(site.Document, site.Scripts())
		if err != nil {
			return err
		}
		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(exportOutput, data, 0644)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <outline.yaml|export.json> <outdir>",
	Short: "Write navtreedata.js, child scripts and index chunks from an outline or JSON export",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		outline, err := readOutline(args[0])
		if err != nil {
			return err
		}

		scripts := make(map[string][]*navtree.Node, len(outline.Scripts))
		for _, s := range outline.Scripts {
			scripts[s.Name] = s.Nodes
		}
		chunks := index.NewIndexer(cfg.Index.ChunkSize).Build(outline.Document.Tree, scripts)
		if chunks == nil {
			chunks = []*navtree.IndexChunk{}
		}
		index.Apply(outline.Document, chunks)

		res, err := generator.WriteSite(args[1], generator.SiteFiles{
			Document: outline.Document,
			Scripts:  outline.Scripts,
			Chunks:   chunks,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🏗️  %s: %d files written, %d unchanged, %d removed.\n",
			args[1], len(res.Written), len(res.Unchanged), len(res.Removed))
		return nil
	},
}

func readOutline(path string) (*generator.Outline, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, scripts, err := generator.ImportJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		outline := &generator.Outline{Document: doc}
		names := make([]string, 0, len(scripts))
		for name := range scripts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			outline.Scripts = append(outline.Scripts, &navtree.ChildScript{
				Name:    name,
				Nodes:   scripts[name],
				Indent:  navtree.DefaultChildIndent,
				Trailer: "\n",
			})
		}
		return outline, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	outline, err := generator.LoadOutline(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return outline, nil
}

var locateCmd = &cobra.Command{
	Use:   "locate <dir> <link>",
	Short: "Find a page through NAVTREEINDEX and its chunks, as the Doxygen viewer does",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, site, err := loadSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		p, ok := index.Lookup(site.Document.Index, site.Chunks, args[1])
		if !ok {
			return fmt.Errorf("%s is not in the navigation index of %s", args[1], site.Dir)
		}
		treePath := append(navtree.Path{0}, p...)
		crumbs, err := navtree.Breadcrumb(resolver.Expand(site.Document.Tree, site.Scripts()), treePath)
		if err != nil {
			return fmt.Errorf("index entry %v for %s does not match the tree: %w", p, args[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", treePath, strings.Join(crumbs, " > "))
		return nil
	},
}

func init() {
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "Print the report as JSON")
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "Rewrite files instead of listing them")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "text", "Output format: text, markdown or mermaid")
	renderCmd.Flags().BoolVar(&renderInline, "inline", true, "Inline child scripts instead of showing their file names")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(locateCmd)
}
