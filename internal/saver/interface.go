package saver

// PredictionSaver persists one run's prediction records to a file. The
// usecase layer injects the implementation; callers only depend on the
// interface.
type PredictionSaver interface {
	Save(records []Record, path string) error
	Extension() string
}
