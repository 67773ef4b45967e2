package service

import (
	"sort"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// ConflictScope names the dimension a conflict is checked on.
type ConflictScope string

const (
	ScopeProfessor ConflictScope = "professor"
	ScopeRoom      ConflictScope = "room"
	ScopeSection   ConflictScope = "section"
)

type indexKey struct {
	scope ConflictScope
	id    string
	day   models.Weekday
}

// ConflictIndex answers overlap queries per (scope, id, day) without scanning the whole period.
// Each bucket is kept sorted by start time.
type ConflictIndex struct {
	buckets map[indexKey][]*models.Assignment
	maxSpan models.Clock
}

// NewConflictIndex builds an index seeded with the given records.
func NewConflictIndex(seed []*models.Assignment) *ConflictIndex {
	ix := &ConflictIndex{buckets: make(map[indexKey][]*models.Assignment)}
	for _, a := range seed {
		ix.Add(a)
	}
	return ix
}

// Add registers a record under its section, and under its professor and room when set.
func (ix *ConflictIndex) Add(a *models.Assignment) {
	if span := a.EndTime - a.StartTime; span > ix.maxSpan {
		ix.maxSpan = span
	}
	ix.insert(indexKey{ScopeSection, a.SectionID, a.Day}, a)
	if id := a.Professor(); id != "" {
		ix.insert(indexKey{ScopeProfessor, id, a.Day}, a)
	}
	if id := a.Room(); id != "" {
		ix.insert(indexKey{ScopeRoom, id, a.Day}, a)
	}
}

// MoveProfessor re-files a record after its professor changed from previous.
func (ix *ConflictIndex) MoveProfessor(a *models.Assignment, previous string) {
	if previous != "" {
		ix.remove(indexKey{ScopeProfessor, previous, a.Day}, a)
	}
	if id := a.Professor(); id != "" {
		ix.insert(indexKey{ScopeProfessor, id, a.Day}, a)
	}
}

// HasConflict reports whether any record in the bucket overlaps r.
func (ix *ConflictIndex) HasConflict(scope ConflictScope, id string, day models.Weekday, r models.TimeRange) bool {
	return ix.first(scope, id, day, r, nil) != nil
}

// FirstConflict returns an overlapping record other than skip, or nil.
func (ix *ConflictIndex) FirstConflict(scope ConflictScope, id string, day models.Weekday, r models.TimeRange, skip *models.Assignment) *models.Assignment {
	return ix.first(scope, id, day, r, skip)
}

// Conflicts returns every overlapping record in start order.
func (ix *ConflictIndex) Conflicts(scope ConflictScope, id string, day models.Weekday, r models.TimeRange) []*models.Assignment {
	bucket := ix.buckets[indexKey{scope, id, day}]
	upper := ix.upperBound(bucket, r)
	var out []*models.Assignment
	for i := upper - 1; i >= 0; i-- {
		e := bucket[i]
		if e.StartTime+ix.maxSpan <= r.Start {
			break
		}
		if e.Range().Overlaps(r) {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Day returns the records filed under (scope, id, day) in start order. The slice must not be modified.
func (ix *ConflictIndex) Day(scope ConflictScope, id string, day models.Weekday) []*models.Assignment {
	return ix.buckets[indexKey{scope, id, day}]
}

func (ix *ConflictIndex) first(scope ConflictScope, id string, day models.Weekday, r models.TimeRange, skip *models.Assignment) *models.Assignment {
	if id == "" {
		return nil
	}
	bucket := ix.buckets[indexKey{scope, id, day}]
	for i := ix.upperBound(bucket, r) - 1; i >= 0; i-- {
		e := bucket[i]
		if e.StartTime+ix.maxSpan <= r.Start {
			break
		}
		if e != skip && e.Range().Overlaps(r) {
			return e
		}
	}
	return nil
}

// upperBound is the first position whose start is at or after r.End; nothing from there on can overlap.
func (ix *ConflictIndex) upperBound(bucket []*models.Assignment, r models.TimeRange) int {
	return sort.Search(len(bucket), func(i int) bool { return bucket[i].StartTime >= r.End })
}

func (ix *ConflictIndex) insert(key indexKey, a *models.Assignment) {
	bucket := ix.buckets[key]
	pos := sort.Search(len(bucket), func(i int) bool {
		if bucket[i].StartTime != a.StartTime {
			return bucket[i].StartTime > a.StartTime
		}
		return bucket[i].EndTime > a.EndTime
	})
	bucket = append(bucket, nil)
	copy(bucket[pos+1:], bucket[pos:])
	bucket[pos] = a
	ix.buckets[key] = bucket
}

func (ix *ConflictIndex) remove(key indexKey, a *models.Assignment) {
	bucket := ix.buckets[key]
	for i, e := range bucket {
		if e == a {
			ix.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}
