package export

import (
	"encoding/json"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/storage"
)

// RunData is the JSON form of a stored run. States holds one row per node.
type RunData struct {
	storage.RunMetadata
	Times  []float64   `json:"times"`
	States [][]float64 `json:"states"`
}

func NewRunData(meta storage.RunMetadata, states mat.Matrix) RunData {
	data := RunData{RunMetadata: meta}
	if states == nil {
		return data
	}
	n, t := states.Dims()
	data.Times = make([]float64, t)
	for j := range data.Times {
		data.Times[j] = float64(j) * meta.Dt
	}
	data.States = make([][]float64, n)
	for i := range data.States {
		data.States[i] = mat.Row(nil, i, states)
	}
	return data
}

func ExportJSON(w io.Writer, meta storage.RunMetadata, states mat.Matrix) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewRunData(meta, states))
}
