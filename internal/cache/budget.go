package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Size classes mirror the teacher's buddy allocator's power-of-two level
// scheme (kernel/threads/arena/buddy.go: MIN_BUDDY_SIZE..MAX_BUDDY_SIZE,
// NUM_BUDDY_LEVELS=9), repurposed here from live memory span tracking to
// static disk-usage reporting of the global cache (`pkg list --global`
// prints entry names only and does not call ComputeAccounting): entries
// are classified by size, never moved or freed by this accounting (cache
// GC is explicitly out of scope — see DESIGN.md).
const (
	minSizeClass = 4 * 1024        // 4 KiB
	maxSizeClass = 1 * 1024 * 1024 // 1 MiB, entries of this size or larger land in the overflow class
	numClasses   = 9
)

// SizeClass is one power-of-two bucket, e.g. [64KiB, 128KiB).
type SizeClass struct {
	LowerBound uint64 // inclusive
	Count      int
	TotalBytes uint64
}

// Accounting summarizes global cache disk usage bucketed by size class.
type Accounting struct {
	Classes  []SizeClass
	Overflow SizeClass // entries >= maxSizeClass
}

func classBounds() []uint64 {
	bounds := make([]uint64, numClasses)
	size := uint64(minSizeClass)
	for i := 0; i < numClasses; i++ {
		bounds[i] = size
		size *= 2
	}
	return bounds
}

// classify returns the index of the largest bound <= size (entries smaller
// than the first bound count toward class 0), or -1 for the overflow
// class (size >= maxSizeClass).
func classify(bounds []uint64, size uint64) int {
	if size >= maxSizeClass {
		return -1
	}
	idx := 0
	for i, b := range bounds {
		if size >= b {
			idx = i
		}
	}
	return idx
}

// ComputeAccounting walks the store's cache root and buckets each
// top-level entry directory by its total on-disk size.
func (s *Store) ComputeAccounting() (*Accounting, error) {
	bounds := classBounds()
	acc := &Accounting{Classes: make([]SizeClass, numClasses)}
	for i, b := range bounds {
		acc.Classes[i].LowerBound = b
	}
	acc.Overflow.LowerBound = maxSizeClass

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("cache: reading root %s: %w", s.root, err)
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		size, err := dirSize(filepath.Join(s.root, ent.Name()))
		if err != nil {
			return nil, err
		}
		idx := classify(bounds, size)
		if idx < 0 {
			acc.Overflow.Count++
			acc.Overflow.TotalBytes += size
			continue
		}
		acc.Classes[idx].Count++
		acc.Classes[idx].TotalBytes += size
	}
	return acc, nil
}

func dirSize(dir string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}
