package optim

import "math"

// CosineSchedule computes learning rate with linear warmup + cosine decay.
//
// The rate rises linearly from 0 to maxLR over warmupSteps, then follows a
// half cosine down to minLR at totalSteps and stays there.
func CosineSchedule(step, warmupSteps, totalSteps int, maxLR, minLR float64) float64 {
	if step < warmupSteps {
		// Linear warmup
		return maxLR * float64(step) / float64(warmupSteps)
	}
	if totalSteps <= warmupSteps {
		return maxLR
	}

	// Cosine decay
	progress := float64(step-warmupSteps) / float64(totalSteps-warmupSteps)
	if progress > 1.0 {
		progress = 1.0
	}
	return minLR + 0.5*(maxLR-minLR)*(1.0+math.Cos(math.Pi*progress))
}

// Scheduler drives every group's learning rate along CosineSchedule,
// relative to the group's learning rate when the scheduler was created.
//
// Example:
//
//	sched := optim.NewCosineScheduler(opt, 100, 1000, 0.1)
//	for range steps {
//	    sched.Step()
//	    opt.Step(closure)
//	}
type Scheduler struct {
	opt      Optimizer
	baseLRs  []float64
	warmup   int
	total    int
	minRatio float64
	step     int
}

// NewCosineScheduler creates a scheduler over opt. minRatio is the final
// learning rate as a fraction of each group's base rate.
func NewCosineScheduler(opt Optimizer, warmupSteps, totalSteps int, minRatio float64) *Scheduler {
	baseLRs := make([]float64, opt.NumGroups())
	for i := range baseLRs {
		baseLRs[i] = opt.GroupLR(i)
	}
	return &Scheduler{
		opt:      opt,
		baseLRs:  baseLRs,
		warmup:   warmupSteps,
		total:    totalSteps,
		minRatio: minRatio,
	}
}

// Step advances the schedule by one and writes the new rates.
func (s *Scheduler) Step() {
	s.step++
	factor := CosineSchedule(s.step, s.warmup, s.total, 1.0, s.minRatio)
	for i, lr := range s.baseLRs {
		s.opt.SetGroupLR(i, lr*factor)
	}
}

// LastLR returns the rates written by the latest Step.
func (s *Scheduler) LastLR() []float64 {
	lrs := make([]float64, len(s.baseLRs))
	for i := range lrs {
		lrs[i] = s.opt.GroupLR(i)
	}
	return lrs
}
