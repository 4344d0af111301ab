package reading

import (
	"sort"
)

// LatestByDevice picks the most recent reading of each device in one pass
// over a copy sorted by (device id asc, timestamp desc, sequence desc).
// When deviceIDs is non-nil only those devices are considered.
func LatestByDevice(readings []*Reading, deviceIDs []string) map[string]*Reading {
	var wanted map[string]struct{}
	if deviceIDs != nil {
		wanted = make(map[string]struct{}, len(deviceIDs))
		for _, id := range deviceIDs {
			wanted[id] = struct{}{}
		}
	}

	candidates := make([]*Reading, 0, len(readings))
	for _, r := range readings {
		if r == nil {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[r.DeviceID]; !ok {
				continue
			}
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		return a.NewerThan(b)
	})

	latest := make(map[string]*Reading)
	for _, r := range candidates {
		if _, seen := latest[r.DeviceID]; !seen {
			latest[r.DeviceID] = r
		}
	}
	return latest
}

// SortNewestFirst orders readings in place, newest first.
func SortNewestFirst(readings []*Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].NewerThan(readings[j])
	})
}
