package tcgcsv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnum      = regexp.MustCompile(`[^0-9a-zA-Z]+`)
)

// ToSnake converts a source field name such as "subTypeName" or "Attack 1"
// to snake_case.
func ToSnake(s string) string {
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.ToLower(strings.Trim(s, "_"))
}

// decodeJSON decodes keeping numbers as json.Number so integral values stay
// integers.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrapResults extracts the record list from a response. The list may sit
// under "results" or "data", possibly one level deeper, or be the document
// itself.
func unwrapResults(doc any) ([]map[string]any, error) {
	data := doc
	for depth := 0; depth < 2; depth++ {
		m, ok := data.(map[string]any)
		if !ok {
			break
		}
		switch {
		case m["results"] != nil:
			data = m["results"]
		case m["data"] != nil:
			data = m["data"]
		default:
			data = []any{m}
		}
	}

	list, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response format: %T", data)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// snakeRecord copies rec with snake_case keys.
func snakeRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[ToSnake(k)] = v
	}
	return out
}

// ParsePrices reads one group's price file: a JSON document whose "results"
// list holds flat price records. Rows are tagged with the day and group.
// A file with no results yields an empty frame.
func ParsePrices(path, day, groupID string) (*frame.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsing %s: top level is %T, want object", path, doc)
	}
	list, _ := m["results"].([]any)
	if len(list) == 0 {
		return frame.New(), nil
	}

	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, snakeRecord(rec))
		}
	}
	f := frame.FromRecords(records)
	if f.Empty() {
		return f, nil
	}
	f.Set(domain.ColDate, day)
	f.Set(domain.ColGroupID, groupID)
	return f, nil
}

// GroupsFrame flattens a groups response. The set name and publication date
// are renamed to set_name and release_date.
func GroupsFrame(doc any) (*frame.Frame, error) {
	list, err := unwrapResults(doc)
	if err != nil {
		return nil, fmt.Errorf("groups: %w", err)
	}
	records := make([]map[string]any, len(list))
	for i, rec := range list {
		records[i] = snakeRecord(rec)
	}
	f := frame.FromRecords(records)
	f.Rename("name", domain.ColSetName)
	f.Rename("published_on", domain.ColReleaseDate)
	return f, nil
}

// FlattenProduct turns one catalog product into a flat record. Presale info
// becomes presale_* columns; extended data entries become columns named after
// their snake-cased name, except that attack entries are numbered attack_1,
// attack_2 and any further attacks are dropped.
func FlattenProduct(prod map[string]any) map[string]any {
	flat := make(map[string]any, len(prod)+8)
	for k, v := range prod {
		if k == "presaleInfo" || k == "extendedData" {
			continue
		}
		flat[ToSnake(k)] = v
	}

	if presale, ok := prod["presaleInfo"].(map[string]any); ok {
		for k, v := range presale {
			flat[ToSnake("presale_"+k)] = v
		}
	}

	attacks := 0
	ext, _ := prod["extendedData"].([]any)
	for _, e := range ext {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		key := ToSnake(name)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "attack") {
			attacks++
			if attacks > domain.MaxAttacks {
				continue
			}
			key = fmt.Sprintf("attack_%d", attacks)
		}
		flat[key] = entry["value"]
	}
	return flat
}

// ProductsFrame flattens a products response and drops pruned columns.
func ProductsFrame(doc any) (*frame.Frame, error) {
	list, err := unwrapResults(doc)
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	records := make([]map[string]any, len(list))
	for i, prod := range list {
		records[i] = FlattenProduct(prod)
	}
	f := frame.FromRecords(records)
	f.DropSet(domain.PruneColumns)
	return f, nil
}
