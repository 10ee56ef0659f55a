package index

import "github.com/starford/marketnotes/internal/models"

// PageIndex defines the page indexing operations consumed by the preview
// server and the MCP tools.
type PageIndex interface {
	UpsertPage(p PageRow, body string, links []string) error
	DeletePage(path string) error
	GetChecksum(path string) (string, error)
	GetPage(path string) (*PageRow, error)
	ListPages(limit, offset int, tag, sort string) ([]PageRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Backlinks(target string) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// DatasetCatalog records fetched data snapshots.
type DatasetCatalog interface {
	UpsertDataset(d models.Dataset) error
	GetDataset(path string) (*models.Dataset, error)
	ListDatasets(source string) ([]models.Dataset, error)
}

var (
	_ PageIndex      = (*DB)(nil)
	_ DatasetCatalog = (*DB)(nil)
)
