package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/cartpole/internal/rollout"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Times   []float64   `json:"times"`
	States  [][]float64 `json:"states"`
	Actions []float64   `json:"actions"`
	Rewards []float64   `json:"rewards"`
	Dones   []bool      `json:"dones"`
}

// ExportJSON writes a run and its trajectory to w as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, ep *rollout.Episode) error {
	data := ExportData{
		Run:     meta,
		Times:   ep.Times,
		States:  make([][]float64, len(ep.States)),
		Actions: ep.Actions,
		Rewards: ep.Rewards,
		Dones:   ep.Dones,
	}
	for i, s := range ep.States {
		data.States[i] = s
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
