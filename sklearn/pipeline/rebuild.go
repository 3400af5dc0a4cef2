package pipeline

import (
	"fmt"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// Rebuild は学習済み Pipeline のステップから同じパラメータを持つ新しい Pipeline を組み立てる。
// names を渡すとステップ名を置き換える（件数はステップ数と一致すること）。
// 返される Pipeline は未学習で、fitted は変更されない。
func Rebuild(fitted *Pipeline, names ...string) (*Pipeline, error) {
	if fitted == nil || len(fitted.Steps) == 0 {
		return nil, errors.NewValueError("pipeline.Rebuild", "source pipeline has no steps")
	}
	if len(names) > 0 && len(names) != len(fitted.Steps) {
		return nil, errors.NewValueError("pipeline.Rebuild",
			fmt.Sprintf("got %d names for %d steps", len(names), len(fitted.Steps)))
	}

	steps, err := cloneSteps(fitted.Steps)
	if err != nil {
		return nil, err
	}
	for i := range steps {
		if len(names) > 0 {
			steps[i].Name = names[i]
		}
	}
	return New(steps...)
}
