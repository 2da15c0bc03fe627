// Package zone loads zone files (YAML, JSON or TOML) into static records and
// watches a zone directory for edits.
//
// A zone file names its origin with zone_root and maps owner labels to
// record types and values:
//
//	zone_root: amazone.com
//	"@":
//	  NS: dns.amazone.com
//	shop:
//	  A: 3.33.147.88
//	dns:
//	  A: [127.0.0.1]
//
// "@" is the origin itself, a label ending in "." is absolute, and any other
// label is relative to the origin.
package zone

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-chain/internal/dns/common/utils"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// keyDelim must not be "." or owner names would be split into nested maps.
const keyDelim = "/"

const rootKey = "zone_root"

// typeOrder fixes the order records of one owner are emitted in.
var typeOrder = []domain.RRType{domain.RRTypeA, domain.RRTypeAAAA, domain.RRTypeCNAME, domain.RRTypeNS}

// LoadZoneDirectory walks dir, loading every supported zone file, and returns
// the static records grouped by zone root. Unsupported extensions are
// skipped. Any parse or validation error aborts the load.
func LoadZoneDirectory(dir string) (map[string][]domain.ResourceRecord, error) {
	zones := make(map[string][]domain.ResourceRecord)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		root, records, err := LoadZoneFile(path)
		if err != nil {
			return fmt.Errorf("error parsing zone file %s: %w", path, err)
		}
		if root != "" && len(records) > 0 {
			zones[root] = append(zones[root], records...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return zones, nil
}

// Flatten returns the records of every zone, zones ordered by root name.
func Flatten(zones map[string][]domain.ResourceRecord) []domain.ResourceRecord {
	var out []domain.ResourceRecord
	for _, root := range Roots(zones) {
		out = append(out, zones[root]...)
	}
	return out
}

// Roots returns the sorted zone roots.
func Roots(zones map[string][]domain.ResourceRecord) []string {
	roots := make([]string, 0, len(zones))
	for root := range zones {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

// LoadZoneFile parses one zone file. It returns an empty root and no error
// for files with an unsupported extension.
func LoadZoneFile(path string) (string, []domain.ResourceRecord, error) {
	parser := parserFor(path)
	if parser == nil {
		return "", nil, nil
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return "", nil, fmt.Errorf("failed to load zone file %s: %w", path, err)
	}

	root := utils.CanonicalDNSName(k.String(rootKey))
	if root == "" {
		return "", nil, fmt.Errorf("zone file %s missing '%s'", path, rootKey)
	}
	if !validName(root) {
		return "", nil, fmt.Errorf("zone file %s: invalid zone root %q", path, root)
	}

	raw := k.Raw()
	labels := make([]string, 0, len(raw))
	for label := range raw {
		if label != rootKey {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	var records []domain.ResourceRecord
	for _, label := range labels {
		owner, ok := raw[label].(map[string]any)
		if !ok {
			continue
		}
		fqdn := utils.CanonicalDNSName(expandName(label, root))
		if !validName(fqdn) {
			return "", nil, fmt.Errorf("invalid owner name %q in %s", label, path)
		}
		recs, err := ownerRecords(fqdn, owner)
		if err != nil {
			return "", nil, fmt.Errorf("invalid record in %s: %w", path, err)
		}
		records = append(records, recs...)
	}
	return root, records, nil
}

func ownerRecords(fqdn string, owner map[string]any) ([]domain.ResourceRecord, error) {
	byType := make(map[domain.RRType][]string, len(owner))
	for typeName, val := range owner {
		rrtype, err := domain.ParseRRType(typeName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fqdn, err)
		}
		byType[rrtype] = append(byType[rrtype], toStringValues(val)...)
	}

	var records []domain.ResourceRecord
	for _, rrtype := range typeOrder {
		for _, v := range byType[rrtype] {
			if err := validateValue(rrtype, v); err != nil {
				return nil, fmt.Errorf("%s %s: %w", fqdn, rrtype, err)
			}
			rr, err := domain.NewStaticRecord(fqdn, rrtype, normalizeValue(rrtype, v))
			if err != nil {
				return nil, err
			}
			records = append(records, rr)
		}
	}
	return records, nil
}

// expandName returns the fully qualified name for a label relative to root.
func expandName(label, root string) string {
	if label == "@" {
		return root
	}
	if strings.HasSuffix(label, ".") {
		return label
	}
	return label + "." + root
}

// toStringValues accepts a single string or a list and drops blank or
// non-string elements.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
