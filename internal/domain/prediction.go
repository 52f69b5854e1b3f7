package domain

// PredictionDataVersion is the current format version written by the stores.
const PredictionDataVersion = "1.0"

// PredictionData is the aggregated statistics a suggestion provider consumes.
//
// ProcedureAddCounts maps a procedure control name to the total number of
// historical sessions in which it was added. CoOccurrences maps an anchor
// control name to companion control names and the count of sessions in which
// the companion was added while the anchor was already present. The counts
// are directional: CoOccurrences[a][b] and CoOccurrences[b][a] track
// different orders of addition and need not agree.
type PredictionData struct {
	Version            string                    `json:"version"`
	ProcedureAddCounts map[string]int            `json:"procedure_add_counts"`
	CoOccurrences      map[string]map[string]int `json:"co_occurrences"`
	SeededFrom         *SeedInfo                 `json:"seeded_from,omitempty"`
}

// NewPredictionData returns an empty aggregate at the current version.
// An empty aggregate is a valid cold-start input for the engine.
func NewPredictionData() *PredictionData {
	return &PredictionData{
		Version:            PredictionDataVersion,
		ProcedureAddCounts: make(map[string]int),
		CoOccurrences:      make(map[string]map[string]int),
	}
}

// AddCount returns the historical add count for a procedure, or zero when
// the procedure has no history.
func (d *PredictionData) AddCount(controlName string) int {
	if d == nil || d.ProcedureAddCounts == nil {
		return 0
	}
	return d.ProcedureAddCounts[controlName]
}

// CompanionCounts returns the co-occurrence row for an anchor procedure.
// A nil map means no history for that anchor.
func (d *PredictionData) CompanionCounts(anchor string) map[string]int {
	if d == nil || d.CoOccurrences == nil {
		return nil
	}
	return d.CoOccurrences[anchor]
}

// RecordAddition bumps the counters for a procedure added to a session.
// anchors are the procedures already present in the session when the
// addition happened; each anchor's co-occurrence count with the new
// procedure is incremented by one.
func (d *PredictionData) RecordAddition(controlName string, anchors []string) {
	if d.ProcedureAddCounts == nil {
		d.ProcedureAddCounts = make(map[string]int)
	}
	if d.CoOccurrences == nil {
		d.CoOccurrences = make(map[string]map[string]int)
	}
	d.ProcedureAddCounts[controlName]++
	for _, anchor := range anchors {
		if anchor == controlName {
			continue
		}
		row := d.CoOccurrences[anchor]
		if row == nil {
			row = make(map[string]int)
			d.CoOccurrences[anchor] = row
		}
		row[controlName]++
	}
}

// RecordSession replays an ordered list of control names through
// RecordAddition: every procedure counts as one add, and every earlier
// procedure in the same session becomes an anchor for the later ones.
func (d *PredictionData) RecordSession(orderedControlNames []string) {
	for i, name := range orderedControlNames {
		d.RecordAddition(name, orderedControlNames[:i])
	}
}

// Merge folds src into d. Counts are summed for matching keys, so merging
// is commutative and associative on counts. SeededFrom metadata follows a
// last-writer rule: a non-nil src.SeededFrom replaces d.SeededFrom.
func (d *PredictionData) Merge(src *PredictionData) {
	if src == nil {
		return
	}
	if d.ProcedureAddCounts == nil {
		d.ProcedureAddCounts = make(map[string]int)
	}
	if d.CoOccurrences == nil {
		d.CoOccurrences = make(map[string]map[string]int)
	}
	for name, count := range src.ProcedureAddCounts {
		d.ProcedureAddCounts[name] += count
	}
	for anchor, companions := range src.CoOccurrences {
		row := d.CoOccurrences[anchor]
		if row == nil {
			row = make(map[string]int, len(companions))
			d.CoOccurrences[anchor] = row
		}
		for companion, count := range companions {
			row[companion] += count
		}
	}
	if src.SeededFrom != nil {
		seeded := *src.SeededFrom
		d.SeededFrom = &seeded
	}
}

// TotalAdds sums all procedure add counts. Used for stats reporting.
func (d *PredictionData) TotalAdds() int {
	total := 0
	for _, count := range d.ProcedureAddCounts {
		total += count
	}
	return total
}
