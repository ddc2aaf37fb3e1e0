package inventory

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ventasur/stockbot/internal/config"
)

// LoadError reports an inventory source that could not be located or parsed,
// including every path that was tried so the operator can see why.
type LoadError struct {
	File     string
	Attempts []string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load inventory %q: %v", e.File, e.Err)
	}
	return fmt.Sprintf("inventory file %q not found, tried: %s", e.File, strings.Join(e.Attempts, ", "))
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// candidatePaths lists the locations probed for the inventory file, in
// fixed priority order: the configured path as given, then the parent
// directories, the deployment directory and any configured extras.
func candidatePaths(cfg config.InventoryConfig) []string {
	paths := []string{
		cfg.File,
		filepath.Join("..", cfg.File),
		filepath.Join("..", "..", cfg.File),
		filepath.Join("/opt/stockbot", cfg.File),
	}
	for _, dir := range cfg.ExtraDirs {
		paths = append(paths, filepath.Join(dir, cfg.File))
	}
	return paths
}

// Load locates and parses the inventory sheet into a fresh Snapshot. The
// first sheet row is the header; later rows become products. Rows with no
// non-empty cell are skipped.
func Load(cfg config.InventoryConfig) (*Snapshot, error) {
	attempts := candidatePaths(cfg)

	var found string
	for _, p := range attempts {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = p
			break
		}
	}
	if found == "" {
		return nil, &LoadError{File: cfg.File, Attempts: attempts}
	}

	log.Printf("[inventory] loading from %s", found)

	f, err := excelize.OpenFile(found)
	if err != nil {
		return nil, &LoadError{File: found, Attempts: attempts, Err: err}
	}
	defer f.Close()

	rows, err := f.GetRows(cfg.Sheet)
	if err != nil {
		return nil, &LoadError{File: found, Attempts: attempts, Err: fmt.Errorf("sheet %q: %w", cfg.Sheet, err)}
	}
	if len(rows) == 0 {
		return nil, &LoadError{File: found, Attempts: attempts, Err: fmt.Errorf("sheet %q is empty", cfg.Sheet)}
	}

	columns := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		columns[i] = strings.TrimSpace(h)
	}

	var products []Row
	for _, raw := range rows[1:] {
		row := make(Row, len(columns))
		empty := true
		for i := range columns {
			if i < len(raw) {
				row[i] = strings.TrimSpace(raw[i])
				if row[i] != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		products = append(products, row)
	}

	snap := New(columns, products)
	log.Printf("[inventory] loaded %d products", snap.Len())
	return snap, nil
}
