package storage

import (
	"context"
	"errors"
	"time"

	"doxnav/internal/navtree"
)

// ErrSiteNotFound is returned for directories that were never scanned.
var ErrSiteNotFound = errors.New("site not found")

// Store is the navigation catalogue.
type Store interface {
	SiteStore
	NavStore
	Close() error
}

// SiteStore manages one snapshot per scanned HTML directory.
type SiteStore interface {
	// SaveSite replaces the snapshot stored for snap.Dir.
	SaveSite(ctx context.Context, snap *Snapshot) (*SiteRecord, error)

	// SiteHash returns the content hash recorded at the last scan.
	SiteHash(ctx context.Context, dir string) (string, bool, error)

	ListSites(ctx context.Context) ([]SiteRecord, error)

	DeleteSite(ctx context.Context, dir string) error

	// SiteDirs lists stored directories at or below root.
	SiteDirs(ctx context.Context, root string) ([]string, error)
}

// NavStore queries stored navigation nodes.
type NavStore interface {
	// Search matches titles case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]NodeRecord, error)

	// LookupLink finds every node pointing at link. A link without an
	// anchor also matches anchored links into the same file.
	LookupLink(ctx context.Context, link string) ([]NodeRecord, error)

	// LoadTree rebuilds the stored tree with child scripts inlined.
	LoadTree(ctx context.Context, dir string) ([]*navtree.Node, error)
}

// Snapshot is what a scan persists for one site.
type Snapshot struct {
	Dir         string
	ContentHash string
	Tree        []*navtree.Node
	// Scripts maps child script names to their entries.
	Scripts  map[string][]*navtree.Node
	Errors   int
	Warnings int
}

type SiteRecord struct {
	ID          int64     `json:"id"`
	Dir         string    `json:"dir"`
	ContentHash string    `json:"content_hash"`
	ScanID      string    `json:"scan_id"`
	ScannedAt   time.Time `json:"scanned_at"`
	NodeCount   int       `json:"node_count"`
	Errors      int       `json:"errors"`
	Warnings    int       `json:"warnings"`
}

// NodeRecord is a stored node with enough context to display it.
type NodeRecord struct {
	Site       string   `json:"site"`
	Path       string   `json:"path"`
	Depth      int      `json:"depth"`
	Title      string   `json:"title"`
	Link       *string  `json:"link"`
	Breadcrumb []string `json:"breadcrumb"`
	// ChildRef names the child script the node's children came from.
	ChildRef string `json:"child_ref,omitempty"`
}
