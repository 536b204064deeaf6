package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"epifeed/internal/ingest"
	"epifeed/internal/logger"
)

// rootLocks serializes refresh-then-read per snapshot root. Independent
// fetchers in one process share it.
var rootLocks sync.Map

func lockRoot(root string) func() {
	key := root
	if abs, err := filepath.Abs(root); err == nil {
		key = abs
	}
	value, _ := rootLocks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (f *Fetcher) fetchDirectory(ctx context.Context, d Descriptor) (Payload, error) {
	dir := filepath.Join(d.Root, d.Dir)
	pattern := d.Pattern
	if pattern == "" {
		pattern = "*"
	}

	unlock := lockRoot(d.Root)
	defer unlock()

	if d.Refresh && f.refresher != nil {
		if err := f.refresher.Refresh(ctx, d.Root); err != nil {
			logger.Warn("snapshot refresh failed, reading local copy", "root", d.Root, "error", err)
		} else {
			logger.Debug("snapshot refreshed", "root", d.Root)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return Payload{}, ingest.NotFound(d.String(), err, "invalid pattern %q", pattern)
	}
	latest, ok := selectNewest(regularFiles(matches), d.NameLayout)
	if !ok {
		return Payload{}, ingest.NotFound(d.String(), nil, "no file matches %q in %s", pattern, dir)
	}
	logger.Debug("selected snapshot file", "path", latest, "candidates", len(matches))
	return f.readFile(latest)
}

func regularFiles(paths []string) []string {
	files := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, path)
	}
	return files
}

// selectNewest returns the newest of paths. With a layout, file name stems
// are parsed as times and the latest wins; names that do not parse are
// skipped. Without one, the lexically greatest name wins, which assumes
// names embed the date most-significant first.
func selectNewest(paths []string, layout string) (string, bool) {
	selected := ""
	var selectedAt time.Time
	for _, path := range paths {
		name := filepath.Base(path)
		if layout == "" {
			if selected == "" || name > filepath.Base(selected) {
				selected = path
			}
			continue
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		at, err := time.Parse(layout, stem)
		if err != nil {
			logger.Warn("skipping snapshot file with unexpected name", "file", name, "layout", layout)
			continue
		}
		if selected == "" || at.After(selectedAt) || (at.Equal(selectedAt) && name > filepath.Base(selected)) {
			selected = path
			selectedAt = at
		}
	}
	return selected, selected != ""
}
