package montecarlo

import "errors"

var (
	// ErrInvalidInput is returned for non-positive prices and out-of-range parameters.
	ErrInvalidInput = errors.New("montecarlo: invalid input")
	// ErrInsufficientData is returned when a series has fewer than two rows.
	ErrInsufficientData = errors.New("montecarlo: insufficient data")
	// ErrEmptyResult is returned when a summary is requested over no paths.
	ErrEmptyResult = errors.New("montecarlo: empty result")
	// ErrGridTooLarge is returned when n_days x n_sim_runs exceeds the configured cap.
	ErrGridTooLarge = errors.New("montecarlo: simulation grid too large")
)
