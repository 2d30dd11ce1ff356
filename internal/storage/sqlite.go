package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"doxnav/internal/navtree"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

const (
	kindNone = "none"
	kindList = "list"
	kindRef  = "ref"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dir TEXT NOT NULL UNIQUE,
			content_hash TEXT,
			scan_id TEXT,
			scanned_at TEXT,
			node_count INTEGER,
			errors INTEGER,
			warnings INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nav_nodes (
			site_id INTEGER NOT NULL,
			ord INTEGER NOT NULL,
			path TEXT NOT NULL,
			parent_path TEXT NOT NULL,
			depth INTEGER NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			title_key TEXT NOT NULL,
			link TEXT,
			file TEXT,
			anchor TEXT,
			kind TEXT NOT NULL,
			child_ref TEXT,
			trail JSON,
			PRIMARY KEY (site_id, path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nav_nodes_link ON nav_nodes(link);`,
		`CREATE INDEX IF NOT EXISTS idx_nav_nodes_file ON nav_nodes(file);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// foldTitle is the case-insensitive key used by Search.
func foldTitle(s string) string {
	return cases.Fold().String(s)
}

type flatNode struct {
	ord      int
	path     navtree.Path
	node     *navtree.Node
	kind     string
	childRef string
	trail    []string
}

// flatten lists nodes in preorder, descending into child scripts that are
// present in scripts.
func flatten(tree []*navtree.Node, scripts map[string][]*navtree.Node) []flatNode {
	var out []flatNode
	active := make(map[string]bool)
	visiting := make(map[*navtree.Node]bool)

	var visit func(nodes []*navtree.Node, prefix navtree.Path, trail []string)
	visit = func(nodes []*navtree.Node, prefix navtree.Path, trail []string) {
		for i, n := range nodes {
			if n == nil || visiting[n] {
				continue
			}
			p := append(prefix.Clone(), i)
			f := flatNode{ord: len(out), path: p, node: n, trail: trail}
			var children []*navtree.Node
			switch n.Children.Kind {
			case navtree.KindList:
				f.kind = kindList
				children = n.Children.Nodes
			case navtree.KindRef:
				f.kind = kindRef
				f.childRef = n.Children.Ref
				if !active[n.Children.Ref] {
					children = scripts[n.Children.Ref]
				}
			default:
				f.kind = kindNone
			}
			out = append(out, f)

			next := append(append([]string{}, trail...), n.Title)
			visiting[n] = true
			if f.kind == kindRef {
				active[f.childRef] = true
				visit(children, p, next)
				delete(active, f.childRef)
			} else {
				visit(children, p, next)
			}
			delete(visiting, n)
		}
	}
	visit(tree, nil, []string{})
	return out
}

// SaveSite replaces the site's rows in one transaction.
func (s *SQLiteStore) SaveSite(ctx context.Context, snap *Snapshot) (*SiteRecord, error) {
	if snap == nil || snap.Dir == "" {
		return nil, fmt.Errorf("snapshot has no directory")
	}
	nodes := flatten(snap.Tree, snap.Scripts)
	rec := &SiteRecord{
		Dir:         snap.Dir,
		ContentHash: snap.ContentHash,
		ScanID:      uuid.NewString(),
		ScannedAt:   time.Now().UTC().Truncate(time.Second),
		NodeCount:   len(nodes),
		Errors:      snap.Errors,
		Warnings:    snap.Warnings,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sites (dir, content_hash, scan_id, scanned_at, node_count, errors, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dir) DO UPDATE SET
			content_hash=excluded.content_hash,
			scan_id=excluded.scan_id,
			scanned_at=excluded.scanned_at,
			node_count=excluded.node_count,
			errors=excluded.errors,
			warnings=excluded.warnings
	`, rec.Dir, rec.ContentHash, rec.ScanID, rec.ScannedAt.Format(time.RFC3339), rec.NodeCount, rec.Errors, rec.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert site: %w", err)
	}
	if err := tx.QueryRowContext(ctx, "SELECT id FROM sites WHERE dir = ?", rec.Dir).Scan(&rec.ID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM nav_nodes WHERE site_id = ?", rec.ID); err != nil {
		return nil, fmt.Errorf("failed to clear nodes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nav_nodes (site_id, ord, path, parent_path, depth, position, title, title_key, link, file, anchor, kind, child_ref, trail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, f := range nodes {
		n := f.node
		var link, file, anchor, childRef sql.NullString
		if n.Link != nil {
			link = sql.NullString{String: *n.Link, Valid: true}
			file = sql.NullString{String: n.File(), Valid: true}
			anchor = sql.NullString{String: n.Anchor(), Valid: n.Anchor() != ""}
		}
		if f.childRef != "" {
			childRef = sql.NullString{String: f.childRef, Valid: true}
		}
		trail, _ := json.Marshal(f.trail)
		_, err := stmt.ExecContext(ctx, rec.ID, f.ord, f.path.String(), f.path.Parent().String(), len(f.path),
			f.path[len(f.path)-1], n.Title, foldTitle(n.Title), link, file, anchor, f.kind, childRef, string(trail))
		if err != nil {
			return nil, fmt.Errorf("failed to insert node %s: %w", f.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) SiteHash(ctx context.Context, dir string) (string, bool, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT content_hash FROM sites WHERE dir = ?", dir).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash.String, true, nil
}

func (s *SQLiteStore) ListSites(ctx context.Context) ([]SiteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dir, content_hash, scan_id, scanned_at, node_count, errors, warnings
		FROM sites ORDER BY dir`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []SiteRecord
	for rows.Next() {
		var rec SiteRecord
		var scannedAt string
		if err := rows.Scan(&rec.ID, &rec.Dir, &rec.ContentHash, &rec.ScanID, &scannedAt, &rec.NodeCount, &rec.Errors, &rec.Warnings); err != nil {
			return nil, err
		}
		rec.ScannedAt, _ = time.Parse(time.RFC3339, scannedAt)
		sites = append(sites, rec)
	}
	return sites, rows.Err()
}

func (s *SQLiteStore) DeleteSite(ctx context.Context, dir string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM sites WHERE dir = ?", dir).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSiteNotFound, dir)
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM nav_nodes WHERE site_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

const nodeColumns = `s.dir, n.path, n.depth, n.title, n.link, n.child_ref, n.trail`

func scanNodes(rows *sql.Rows) ([]NodeRecord, error) {
	defer rows.Close()
	var out []NodeRecord
	for rows.Next() {
		var rec NodeRecord
		var link, childRef, trail sql.NullString
		if err := rows.Scan(&rec.Site, &rec.Path, &rec.Depth, &rec.Title, &link, &childRef, &trail); err != nil {
			return nil, err
		}
		if link.Valid {
			l := link.String
			rec.Link = &l
		}
		rec.ChildRef = childRef.String
		var ancestors []string
		if trail.Valid {
			_ = json.Unmarshal([]byte(trail.String), &ancestors)
		}
		rec.Breadcrumb = append(ancestors, rec.Title)
		out = append(out, rec)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]NodeRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(foldTitle(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nav_nodes n JOIN sites s ON s.id = n.site_id
		WHERE n.title_key LIKE ? ESCAPE '\'
		ORDER BY n.depth, s.dir, n.ord
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return scanNodes(rows)
}

func (s *SQLiteStore) LookupLink(ctx context.Context, link string) ([]NodeRecord, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, nil
	}
	where := "n.link = ?"
	args := []any{link}
	if !strings.Contains(link, "#") {
		where = "(n.link = ? OR n.file = ?)"
		args = append(args, link)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nav_nodes n JOIN sites s ON s.id = n.site_id
		WHERE `+where+`
		ORDER BY s.dir, n.ord`, args...)
	if err != nil {
		return nil, err
	}
	return scanNodes(rows)
}

func (s *SQLiteStore) LoadTree(ctx context.Context, dir string) ([]*navtree.Node, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM sites WHERE dir = ?", dir).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, dir)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, parent_path, title, link, kind, child_ref
		FROM nav_nodes WHERE site_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPath := make(map[string]*navtree.Node)
	var roots []*navtree.Node
	for rows.Next() {
		var path, parent, title, kind string
		var link, childRef sql.NullString
		if err := rows.Scan(&path, &parent, &title, &link, &kind, &childRef); err != nil {
			return nil, err
		}
		n := &navtree.Node{Title: title}
		if link.Valid {
			l := link.String
			n.Link = &l
		}
		switch kind {
		case kindList:
			n.Children = navtree.Children{Kind: navtree.KindList, Nodes: []*navtree.Node{}}
		case kindRef:
			n.Children = navtree.Children{Kind: navtree.KindRef, Ref: childRef.String}
		}
		byPath[path] = n

		if parent == "" {
			roots = append(roots, n)
			continue
		}
		p, ok := byPath[parent]
		if !ok {
			return nil, fmt.Errorf("node %s stored before its parent", path)
		}
		// Children of a ref were inlined from its child script.
		if p.Children.Kind == navtree.KindRef {
			p.Children = navtree.Children{Kind: navtree.KindList}
		}
		p.Children.Nodes = append(p.Children.Nodes, n)
	}
	return roots, rows.Err()
}

// SiteDirs returns the stored directories under root, for pruning sites that
// disappeared from disk.
func (s *SQLiteStore) SiteDirs(ctx context.Context, root string) ([]string, error) {
	sites, err := s.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	var dirs []string
	for _, site := range sites {
		if site.Dir == root || strings.HasPrefix(site.Dir, prefix) {
			dirs = append(dirs, site.Dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
