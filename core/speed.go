package core

import "gonum.org/v1/gonum/stat"

// AverageSpeed returns the mean instantaneous speed across all records in
// km/s. It fails with ErrEmptyDataset on empty input and propagates
// ErrInvalidVector from any non-finite record.
func AverageSpeed(records []StateVector) (float64, error) {
	if len(records) == 0 {
		return 0, ErrEmptyDataset
	}
	speeds := make([]float64, len(records))
	for i, sv := range records {
		sp, err := sv.Speed()
		if err != nil {
			return 0, err
		}
		speeds[i] = sp
	}
	return stat.Mean(speeds, nil), nil
}
