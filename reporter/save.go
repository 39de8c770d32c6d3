package reporter

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes the reporter's full parameter state to path as a single JSON
// mapping: every probe and Platt parameter by name, the projector weight
// under "norm.weight", and the integer "in_features". There is no version or
// schema field; a loader reconstructs the architecture from a matching
// configuration before restoring values.
func (r *Reporter) Save(path string) error {
	state := make(map[string]interface{})
	for name, values := range r.namedParams() {
		state[name] = values
	}

	w := r.proj.Weight()
	rows, cols := w.Dims()
	flat := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			flat = append(flat, w.At(i, j))
		}
	}
	state["norm.weight"] = flat
	state["in_features"] = r.inFeatures

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save reporter: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("save reporter: %w", err)
	}
	return nil
}
