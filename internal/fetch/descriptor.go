package fetch

import (
	"fmt"
	"path/filepath"
)

type Kind int

const (
	KindURL Kind = iota + 1
	KindDirectory
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor says where a provider's raw data comes from. It is a value
// type; the With* helpers return modified copies.
//
// KindURL reads Location, which may be an http(s) URL, a file:// URI or a
// bare path. KindDirectory picks the newest file matching Pattern under
// Root/Dir, optionally refreshing the snapshot tree at Root first.
// KindArchive reads the latest payload archived under ArchiveKey. For the
// other kinds ArchiveKey names where a successful payload is archived.
type Descriptor struct {
	Kind       Kind
	Location   string
	Root       string
	Dir        string
	Pattern    string
	NameLayout string
	Refresh    bool
	ArchiveKey string
}

func URL(location string) Descriptor {
	return Descriptor{Kind: KindURL, Location: location}
}

func Directory(root, dir, pattern string) Descriptor {
	return Descriptor{Kind: KindDirectory, Root: root, Dir: dir, Pattern: pattern}
}

func Archive(key string) Descriptor {
	return Descriptor{Kind: KindArchive, ArchiveKey: key}
}

// WithLayout makes directory selection parse file names (without extension)
// with the given time layout instead of trusting lexical order.
func (d Descriptor) WithLayout(layout string) Descriptor {
	d.NameLayout = layout
	return d
}

func (d Descriptor) WithRefresh(refresh bool) Descriptor {
	d.Refresh = refresh
	return d
}

func (d Descriptor) WithArchiveKey(key string) Descriptor {
	d.ArchiveKey = key
	return d
}

func (d Descriptor) IsZero() bool {
	return d.Kind == 0
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindURL:
		return d.Location
	case KindDirectory:
		s := "dir:" + filepath.Join(d.Root, d.Dir, d.Pattern)
		if d.Refresh {
			s += " (refresh)"
		}
		return s
	case KindArchive:
		return "archive:" + d.ArchiveKey
	default:
		return d.Kind.String()
	}
}
