// Package domain defines the canonical column names, natural keys and on-disk
// naming conventions shared by every stage of the price pipeline.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of day keys, partition names and the date column.
const DateLayout = "2006-01-02"

// Canonical column names.
const (
	ColDate        = "date"
	ColGroupID     = "groupid"
	ColProductID   = "product_id"
	ColSubTypeName = "sub_type_name"
	ColMarketPrice = "market_price"
	ColSetName     = "set_name"
	ColReleaseDate = "release_date"

	// SourceGroupID is the snake-cased group key as delivered by the catalog
	// API, before it is renamed to ColGroupID.
	SourceGroupID = "group_id"
)

// FactKey is the natural key of an enriched price row.
var FactKey = []string{ColProductID, ColDate, ColSubTypeName}

// ProductJoinKey joins facts to products.
var ProductJoinKey = []string{ColGroupID, ColProductID}

// GroupJoinKey joins facts to groups.
var GroupJoinKey = []string{ColGroupID}

// PruneColumns lists low-value columns dropped at every write boundary.
var PruneColumns = map[string]struct{}{
	"url":                 {},
	"image_url":           {},
	"image_count":         {},
	"modified_on_x":       {},
	"presale_is_presale":  {},
	"presale_released_on": {},
	"presale_note":        {},
	"modified_on_y":       {},
	"extended_data":       {},
	"attack_3":            {},
	"attack_4":            {},
	"attack_5":            {},
}

// MaxAttacks caps the number of attack attributes kept per product.
const MaxAttacks = 2

// File and directory names under the base directory.
const (
	RawPartitionDir      = "daily_prices"
	EnrichedPartitionDir = "daily"
	ArchivesDir          = "archives"
	ExtractedDir         = "extracted"
	GroupsFile           = "groups.parquet"
	ProductsFile         = "products.parquet"
	ProcessedDaysFile    = "processed_days.txt"
	ProcessedGroupsFile  = "processed_products.txt"
	PartFile             = "part.parquet"
	DefaultRollupFile    = "pokemon_prices_with_full_features.parquet"
)

// FormatDay renders a calendar date as a day key.
func FormatDay(t time.Time) string { return t.Format(DateLayout) }

// ParseDay parses a day key.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// ErrNoData marks a unit (a day or a group) for which the source has nothing
// to offer. Such units are skipped and left unmarked so later runs retry them.
var ErrNoData = errors.New("no data")
