package bench

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/internal/parallel"
)

// Sweep trains every configured optimizer on its own fresh copy of the
// task. Runs are independent and execute on up to cfg.Run.Workers
// goroutines; each optimizer itself stays single-threaded.
//
// Results are returned in config order. The first failing run cancels the
// runs that have not started.
func Sweep(ctx context.Context, cfg *config.Config, logger *log.Logger) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Fail on a bad task before starting any run.
	if _, err := NewObjective(cfg.Task, cfg.Seed); err != nil {
		return nil, err
	}

	runner := NewRunner(cfg.Run, logger)
	results := make([]*Result, len(cfg.Optimizers))
	workers := parallel.DefaultConfig().WithWorkers(cfg.Run.Workers)

	err := parallel.ForErr(ctx, len(cfg.Optimizers), func(ctx context.Context, i int) error {
		oc := cfg.Optimizers[i]

		obj, err := NewObjective(cfg.Task, cfg.Seed)
		if err != nil {
			return err
		}
		opt, err := optim.Build(oc.Spec, obj.Params())
		if err != nil {
			return errors.WithMessagef(err, "bench: optimizer %q", oc.Label)
		}

		runner.logger().Printf("task=%s optimizer=%s", obj.Name(), oc.Label)
		res, err := runner.Train(ctx, oc.Label, obj, opt)
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	}, workers)
	if err != nil {
		return nil, err
	}
	return results, nil
}
