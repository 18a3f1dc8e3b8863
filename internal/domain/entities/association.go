package entities

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Association links one left entity to one right entity within a pivot.
// The pair (Pivot, LeftID, RightID) is unique.
type Association struct {
	ID        string         `json:"id"`
	Pivot     string         `json:"pivot"`
	LeftID    string         `json:"left_id"`
	RightID   string         `json:"right_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MergeMetadata copies the given keys over the association's metadata and
// reports whether anything changed.
func (a *Association) MergeMetadata(md map[string]any) bool {
	if len(md) == 0 {
		return false
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]any, len(md))
	}
	changed := false
	for k, v := range md {
		if old, ok := a.Metadata[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		a.Metadata[k] = v
		changed = true
	}
	return changed
}

// CloneMetadata returns a shallow copy of md, or nil when md is empty.
func CloneMetadata(md map[string]any) map[string]any {
	if len(md) == 0 {
		return nil
	}
	return maps.Clone(md)
}

// SyncResult reports the changes applied by a synchronize call.
type SyncResult struct {
	Pivot       string   `json:"pivot"`
	LeftID      string   `json:"left_id"`
	ToAdd       []string `json:"to_add"`
	ToRemove    []string `json:"to_remove"`
	Current     []string `json:"current"`
	Fingerprint string   `json:"fingerprint"`
}

// Changed reports whether the synchronize call modified anything.
func (r *SyncResult) Changed() bool {
	return len(r.ToAdd) > 0 || len(r.ToRemove) > 0
}

// ComputeDiff returns the ids to add and remove to turn current into
// target. Both results are sorted and free of duplicates.
func ComputeDiff(current, target []string) (toAdd, toRemove []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(target))
	for _, id := range target {
		want[id] = struct{}{}
	}

	toAdd = make([]string, 0, len(want))
	for id := range want {
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	toRemove = make([]string, 0, len(have))
	for id := range have {
		if _, ok := want[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	slices.Sort(toAdd)
	slices.Sort(toRemove)
	return toAdd, toRemove
}

// UniqueSorted returns the distinct ids in ascending order.
func UniqueSorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint hashes a set of ids independent of their order. Equal sets
// always produce equal fingerprints.
func Fingerprint(ids []string) string {
	sorted := UniqueSorted(ids)
	h := xxh3.New()
	for _, id := range sorted {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// RightIDs extracts the right ids of the given associations.
func RightIDs(assocs []Association) []string {
	ids := make([]string, len(assocs))
	for i := range assocs {
		ids[i] = assocs[i].RightID
	}
	return ids
}

// ParseMetadataPairs turns "key=value" strings into a metadata map.
func ParseMetadataPairs(pairs []string) (map[string]any, bool) {
	if len(pairs) == 0 {
		return nil, true
	}
	md := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, false
		}
		md[strings.TrimSpace(k)] = v
	}
	return md, true
}
