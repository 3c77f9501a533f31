package sim

import (
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/me/vmbroker/pkg/model"
)

// durationExpr computes task run times from a JavaScript expression. The
// expression sees task.id, task.runtime, task.parents, mips, and length,
// and must evaluate to a non-negative number of seconds.
type durationExpr struct {
	prog *goja.Program
	vm   *goja.Runtime
}

func compileDuration(src string) (*durationExpr, error) {
	prog, err := goja.Compile("duration", src, false)
	if err != nil {
		return nil, fmt.Errorf("compile duration expression: %w", err)
	}
	return &durationExpr{prog: prog, vm: goja.New()}, nil
}

func (d *durationExpr) eval(task model.TaskNode, mips, length float64) (float64, error) {
	parents := append([]string{}, task.Parents...)
	taskObj := map[string]any{
		"id":      task.ID,
		"runtime": task.Runtime,
		"parents": parents,
	}
	if err := d.vm.Set("task", taskObj); err != nil {
		return 0, fmt.Errorf("set task: %w", err)
	}
	if err := d.vm.Set("mips", mips); err != nil {
		return 0, fmt.Errorf("set mips: %w", err)
	}
	if err := d.vm.Set("length", length); err != nil {
		return 0, fmt.Errorf("set length: %w", err)
	}

	val, err := d.vm.RunProgram(d.prog)
	if err != nil {
		return 0, fmt.Errorf("duration expression for task %q: %w", task.ID, err)
	}
	secs := val.ToFloat()
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("duration expression for task %q: got %v, want a non-negative number", task.ID, val)
	}
	return secs, nil
}
