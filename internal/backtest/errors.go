package backtest

import "errors"

var (
	// ErrInvalidTimeframe means the target timeframe is not a positive whole
	// multiple of the source granularity.
	ErrInvalidTimeframe = errors.New("backtest: invalid timeframe")

	// ErrUnsortedInput means input bars or reference timestamps are not
	// strictly increasing. Fatal: silent reordering would mask an upstream
	// data-integrity bug.
	ErrUnsortedInput = errors.New("backtest: input not strictly increasing")

	// ErrMalformedBar means a bar violates the OHLC envelope. Fatal.
	ErrMalformedBar = errors.New("backtest: malformed bar")

	// ErrInsufficientRange means the data range cannot produce one full fold.
	ErrInsufficientRange = errors.New("backtest: range too short for one fold")

	// ErrLeakageViolation means a selected bar's period end exceeded its
	// reference timestamp. Always a defect, never recoverable; it aborts
	// the run immediately.
	ErrLeakageViolation = errors.New("backtest: future bar selected for reference timestamp")
)
