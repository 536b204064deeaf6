// Package providers is the closed set of data providers and the single
// place that dispatches on them.
package providers

import (
	"errors"
	"fmt"
	"strings"

	"epifeed/internal/fetch"
	"epifeed/internal/model"
	"epifeed/internal/providers/covidtracking"
	"epifeed/internal/providers/jhu"
	"epifeed/internal/providers/owid"
)

var ErrUnknownVariant = errors.New("providers: unknown variant")

type Variant int

const (
	JohnsHopkins Variant = iota + 1
	CovidTracking
	OurWorldInData
)

var variants = []Variant{JohnsHopkins, CovidTracking, OurWorldInData}

var aliases = map[string]Variant{
	jhu.Name:           JohnsHopkins,
	"johnshopkins":     JohnsHopkins,
	"johns_hopkins":    JohnsHopkins,
	covidtracking.Name: CovidTracking,
	"covid_tracking":   CovidTracking,
	owid.Name:          OurWorldInData,
	"ourworldindata":   OurWorldInData,
}

func Variants() []Variant {
	return append([]Variant(nil), variants...)
}

func ParseVariant(name string) (Variant, error) {
	v, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// ParseVariants parses a comma separated list. Duplicates are dropped and
// an empty list means every variant.
func ParseVariants(list string) ([]Variant, error) {
	seen := make(map[Variant]bool)
	out := make([]Variant, 0, len(variants))
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := ParseVariant(part)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return Variants(), nil
	}
	return out, nil
}

func (v Variant) String() string {
	switch v {
	case JohnsHopkins:
		return jhu.Name
	case CovidTracking:
		return covidtracking.Name
	case OurWorldInData:
		return owid.Name
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

func (v Variant) Valid() bool {
	switch v {
	case JohnsHopkins, CovidTracking, OurWorldInData:
		return true
	}
	return false
}

// Settings carries each provider's own configuration.
type Settings struct {
	JHU           jhu.Config
	CovidTracking covidtracking.Config
	OWID          owid.Config
}

func DefaultSettings() Settings {
	return Settings{
		JHU:           jhu.DefaultConfig(),
		CovidTracking: covidtracking.DefaultConfig(),
		OWID:          owid.DefaultConfig(),
	}
}

func (s Settings) Descriptor(v Variant) (fetch.Descriptor, error) {
	switch v {
	case JohnsHopkins:
		return s.JHU.Descriptor(), nil
	case CovidTracking:
		return s.CovidTracking.Descriptor(), nil
	case OurWorldInData:
		return s.OWID.Descriptor(), nil
	default:
		return fetch.Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

func Reformat(v Variant, table *model.Table) (*model.Table, error) {
	switch v {
	case JohnsHopkins:
		return jhu.Reformat(table)
	case CovidTracking:
		return covidtracking.Reformat(table)
	case OurWorldInData:
		return owid.Reformat(table)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

func DateColumn(v Variant) string {
	switch v {
	case JohnsHopkins:
		return jhu.DateColumn()
	case CovidTracking:
		return covidtracking.DateColumn()
	case OurWorldInData:
		return owid.DateColumn()
	default:
		return ""
	}
}

// RegionFilter applies the variant's region rule. No match yields an empty
// table, never nil.
func RegionFilter(v Variant, table *model.Table, key string) (*model.Table, error) {
	switch v {
	case JohnsHopkins:
		return jhu.Region(table, key), nil
	case CovidTracking:
		return covidtracking.Region(table, key), nil
	case OurWorldInData:
		return owid.Region(table, key), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

// ArchiveKey is the key raw payloads for v are archived under.
func ArchiveKey(v Variant) string {
	if !v.Valid() {
		return ""
	}
	return v.String()
}
