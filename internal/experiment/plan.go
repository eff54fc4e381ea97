// Package experiment runs families of estimates (parameter sweeps, repeated
// runs and iteration-budget sweeps) for every sampling method, checks them
// against the reference area and persists each method's series.
package experiment

import (
	"fmt"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/results"
	"github.com/agbru/mandelarea/internal/sampling"
)

// Job is one estimate of a plan. Side is the orthogonal grid side; pure and
// LHS sampling draw Side² points so every method sees the same sample count.
type Job struct {
	Side    int `json:"side"`
	MaxIter int `json:"max_iter"`
}

// Size returns the size argument for a sampler of the given method.
func (j Job) Size(m sampling.Method) int {
	if m == sampling.Ortho {
		return j.Side
	}
	return j.Side * j.Side
}

// Plan is an ordered list of jobs sharing an experiment.
type Plan struct {
	Experiment results.Experiment `json:"experiment"`
	Jobs       []Job              `json:"jobs"`
}

// GridPlan is the cartesian product sides × iters, sides varying slowest.
func GridPlan(sides, iters []int) Plan {
	jobs := make([]Job, 0, len(sides)*len(iters))
	for _, s := range sides {
		for _, it := range iters {
			jobs = append(jobs, Job{Side: s, MaxIter: it})
		}
	}
	return Plan{Experiment: results.Sweep, Jobs: jobs}
}

// RepeatPlan runs the same job repeats times.
func RepeatPlan(side, maxIter, repeats int) Plan {
	jobs := make([]Job, max(repeats, 0))
	for i := range jobs {
		jobs[i] = Job{Side: side, MaxIter: maxIter}
	}
	return Plan{Experiment: results.Repeat, Jobs: jobs}
}

// IterationPlan fixes the side and walks the budget from lo up to, but not
// including, hi in increments of step.
func IterationPlan(side, lo, hi, step int) Plan {
	var jobs []Job
	if step > 0 {
		for it := lo; it < hi; it += step {
			jobs = append(jobs, Job{Side: side, MaxIter: it})
		}
	}
	return Plan{Experiment: results.Iterations, Jobs: jobs}
}

// Validate checks that the plan has jobs and that every job is runnable.
func (p Plan) Validate() error {
	if len(p.Jobs) == 0 {
		return fmt.Errorf("%w: %s plan has no jobs", mandelbrot.ErrInvalidArgument, p.Experiment)
	}
	for i, j := range p.Jobs {
		if j.Side <= 0 || j.MaxIter <= 0 {
			return fmt.Errorf("%w: job %d has side %d and budget %d", mandelbrot.ErrInvalidArgument, i, j.Side, j.MaxIter)
		}
	}
	return nil
}
