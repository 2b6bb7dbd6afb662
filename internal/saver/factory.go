package saver

import (
	"fmt"
	"strings"
)

// NewPredictionSaver creates an implementation for format (csv, parquet,
// json). Returns an error for anything else.
func NewPredictionSaver(format string) (PredictionSaver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	default:
		return nil, fmt.Errorf("saver: unsupported format %q (use: csv, parquet, json)", format)
	}
}
