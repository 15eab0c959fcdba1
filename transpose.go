package vecquery

import "fmt"

// Transpose converts a rectangular collection indexed [a][b] into one
// indexed [b][a]. It is used to pivot between shard-major and
// query/intermediate-major views of the same ragged 3-D data: callers
// fold the third (point) dimension into T itself (e.g. T holds a
// []ScoredPoint), so Transpose only ever has to reason about two
// dimensions.
//
// Every row of in must have the same length; otherwise Transpose fails
// rather than silently dropping or padding entries.
func Transpose[T any](in [][]T) ([][]T, error) {
	if len(in) == 0 {
		return nil, nil
	}

	width := len(in[0])
	for a, row := range in {
		if len(row) != width {
			return nil, fmt.Errorf("vecquery: transpose: row %d has length %d, want %d", a, len(row), width)
		}
	}

	out := make([][]T, width)
	for b := 0; b < width; b++ {
		col := make([]T, len(in))
		for a, row := range in {
			col[a] = row[b]
		}
		out[b] = col
	}
	return out, nil
}
