package agg

import "context"

// Stage transforms one materialized batch of rows into the next.
// Every stage in §4.6 either needs the whole input at once ($count,
// $sort, $group) or is cheap enough streamed or batched that batching
// costs nothing observable ($match, $skip, $limit, $addFields,
// $unset), so the pipeline runs stage-by-stage over a fully
// materialized slice rather than a channel pipeline. Ordering
// guarantees (§5, "aggregation stages preserve upstream order unless
// the stage is $sort or $group") are the stage's responsibility to
// uphold on its output slice.
type Stage interface {
	Run(ctx context.Context, rows []Row) ([]Row, error)
}
