package agg

import "context"

// skipStage and limitStage are pure windowing over the materialized
// row slice (§4.6, "windowing on the stream"). Neither evaluates an
// expression or accumulates a value, so there is nothing for the VM to
// do here beyond what a plain slice operation already does.
type skipStage struct{ n int }
type limitStage struct{ n int }

func (s *skipStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	if s.n >= len(rows) {
		return nil, nil
	}
	return rows[s.n:], nil
}

func (s *limitStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	if s.n >= len(rows) {
		return rows, nil
	}
	return rows[:s.n], nil
}
