package timing

// Sample is the observable cost record of one renderer.
type Sample struct {
	Name      string  `json:"name"`
	LastMs    float64 `json:"last_ms"`
	AverageMs float64 `json:"average_ms"`
	Count     int     `json:"count"`
}

// Snapshot reports the cost model for a renderer list.
type Snapshot struct {
	Samples []Sample `json:"samples"`
	Missing []string `json:"missing,omitempty"`
}

// TotalMs sums the averages of every sampled renderer.
func (s Snapshot) TotalMs() float64 {
	var total float64
	for _, sample := range s.Samples {
		total += sample.AverageMs
	}
	return total
}

// Snapshot returns the samples for names in the given order, listing
// renderers without history in Missing. It does not modify the tracker.
func (t *Tracker) Snapshot(names []string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{Samples: make([]Sample, 0, len(names))}
	for _, name := range names {
		s, ok := t.series[name]
		if !ok {
			snap.Missing = append(snap.Missing, name)
			continue
		}
		snap.Samples = append(snap.Samples, Sample{
			Name:      name,
			LastMs:    s.last,
			AverageMs: s.average,
			Count:     s.count,
		})
	}
	return snap
}
