package agg

import (
	"context"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
)

// Pipeline is a compiled ordered list of stage documents (§4.6).
type Pipeline struct {
	stages []Stage
}

// Compile compiles every stage document in spec, in order. Each stage
// document must have exactly one key naming the stage.
func Compile(spec []*core.Doc) (*Pipeline, error) {
	p := &Pipeline{}
	for i, stageDoc := range spec {
		if stageDoc.Len() != 1 {
			return nil, fmt.Errorf("%w: pipeline stage %d must have exactly one key", core.ErrInvalidField, i)
		}
		key := stageDoc.Keys()[0]
		val, _ := stageDoc.Get(key)

		stage, err := compileStage(key, val)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, key, err)
		}
		p.stages = append(p.stages, stage)
	}
	return p, nil
}

func compileStage(key string, val core.Value) (Stage, error) {
	switch key {
	case "$match":
		d, ok := val.AsDocument()
		if !ok {
			return nil, fmt.Errorf("%w: $match requires a filter document", core.ErrInvalidField)
		}
		return newMatchStage(d)
	case "$count":
		name, ok := val.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: $count requires a field name string", core.ErrInvalidField)
		}
		return newCountStage(name), nil
	case "$skip":
		n, ok := nonNegativeInt(val)
		if !ok {
			return nil, fmt.Errorf("%w: $skip requires a non-negative integer", core.ErrInvalidField)
		}
		return &skipStage{n: n}, nil
	case "$limit":
		n, ok := nonNegativeInt(val)
		if !ok {
			return nil, fmt.Errorf("%w: $limit requires a non-negative integer", core.ErrInvalidField)
		}
		return &limitStage{n: n}, nil
	case "$sort":
		d, ok := val.AsDocument()
		if !ok {
			return nil, fmt.Errorf("%w: $sort requires a spec document", core.ErrInvalidField)
		}
		return newSortStage(d)
	case "$group":
		d, ok := val.AsDocument()
		if !ok {
			return nil, fmt.Errorf("%w: $group requires a spec document", core.ErrInvalidField)
		}
		return newGroupStage(d)
	case "$addFields":
		d, ok := val.AsDocument()
		if !ok {
			return nil, fmt.Errorf("%w: $addFields requires a spec document", core.ErrInvalidField)
		}
		return newAddFieldsStage(d)
	case "$unset":
		return newUnsetStage(val)
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownOperator, key)
}

func nonNegativeInt(v core.Value) (int, bool) {
	if i, ok := v.AsInt32(); ok && i >= 0 {
		return int(i), true
	}
	if i, ok := v.AsInt64(); ok && i >= 0 {
		return int(i), true
	}
	return 0, false
}

// Run materializes source into rows and threads them through every
// compiled stage in order.
func (p *Pipeline) Run(ctx context.Context, source vm.RowSource) ([]Row, error) {
	rows, err := materialize(ctx, source)
	if err != nil {
		return nil, err
	}
	for _, stage := range p.stages {
		rows, err = stage.Run(ctx, rows)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func materialize(ctx context.Context, source vm.RowSource) ([]Row, error) {
	defer source.Close()
	var rows []Row
	ok, err := source.Rewind(ctx)
	if err != nil {
		return nil, err
	}
	for ok {
		rows = append(rows, Row{ID: source.CurrentID(), Doc: source.Current()})
		ok, err = source.Next(ctx)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}
