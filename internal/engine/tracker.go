package engine

import "annotation-service/internal/model"

// TrackerEntry is the per-detection bookkeeping record. Validation state
// deliberately lives only on the annotation itself; the tracker answers
// count queries without rescanning the annotation list.
type TrackerEntry struct {
	VRUType     model.VRUType
	FrameNumber int
	Timestamp   float64
	BoundingBox model.BoundingBox
	Confidence  float64
}

// TrackerTable is an in-memory projection of the open video's annotation
// set, keyed by detection id. It is not safe for concurrent use; the owning
// session serializes access.
type TrackerTable struct {
	entries map[string]TrackerEntry
	byType  map[model.VRUType]int
}

func NewTrackerTable() *TrackerTable {
	t := &TrackerTable{}
	t.Clear()
	return t
}

// Clear empties the table. Called on every video-open transition so no
// entries leak across videos.
func (t *TrackerTable) Clear() {
	t.entries = make(map[string]TrackerEntry)
	t.byType = make(map[model.VRUType]int)
}

// Put inserts or overwrites the entry for the detection id, keeping the
// per-type counts in step.
func (t *TrackerTable) Put(detectionID string, entry TrackerEntry) {
	if prev, ok := t.entries[detectionID]; ok {
		t.byType[prev.VRUType]--
		if t.byType[prev.VRUType] == 0 {
			delete(t.byType, prev.VRUType)
		}
	}
	t.entries[detectionID] = entry
	t.byType[entry.VRUType]++
}

func (t *TrackerTable) Remove(detectionID string) {
	entry, ok := t.entries[detectionID]
	if !ok {
		return
	}
	delete(t.entries, detectionID)
	t.byType[entry.VRUType]--
	if t.byType[entry.VRUType] == 0 {
		delete(t.byType, entry.VRUType)
	}
}

func (t *TrackerTable) Get(detectionID string) (TrackerEntry, bool) {
	entry, ok := t.entries[detectionID]
	return entry, ok
}

func (t *TrackerTable) Len() int {
	return len(t.entries)
}

// CountsByType returns a copy of the per-type counts.
func (t *TrackerTable) CountsByType() map[model.VRUType]int {
	counts := make(map[model.VRUType]int, len(t.byType))
	for vruType, count := range t.byType {
		counts[vruType] = count
	}
	return counts
}
