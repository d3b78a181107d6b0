package editor

import "sort"

// Run is a maximal run of consecutive indices, inclusive on both ends.
type Run struct {
	Start int
	End   int
}

func (r Run) Len() int { return r.End - r.Start + 1 }

// ContiguousRuns sorts the given indices ascending and partitions them into
// maximal runs of consecutive integers. Duplicates collapse. An empty input
// yields zero runs.
func ContiguousRuns(indices []int) []Run {
	if len(indices) == 0 {
		return nil
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	var runs []Run
	start, prev := sorted[0], sorted[0]
	for _, idx := range sorted[1:] {
		if idx == prev || idx == prev+1 {
			prev = idx
			continue
		}
		runs = append(runs, Run{Start: start, End: prev})
		start, prev = idx, idx
	}
	return append(runs, Run{Start: start, End: prev})
}
