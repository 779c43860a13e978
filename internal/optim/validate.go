package optim

import "math"

func checkFinite(name, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return configErrorf("%s: %s must be finite, got %v", name, field, v)
	}
	return nil
}

func checkLR(name string, lr float64) error {
	if err := checkFinite(name, "lr", lr); err != nil {
		return err
	}
	if lr < 0 {
		return configErrorf("%s: invalid learning rate %v (must be >= 0)", name, lr)
	}
	return nil
}

func checkBetas(name string, betas [2]float64) error {
	for i, b := range betas {
		if math.IsNaN(b) || b < 0 || b >= 1 {
			return configErrorf("%s: invalid beta parameter at index %d: %v (must be in [0, 1))", name, i, b)
		}
	}
	return nil
}

func checkMomentum(name string, momentum float64) error {
	if math.IsNaN(momentum) || momentum < 0 || momentum >= 1 {
		return configErrorf("%s: invalid momentum %v (must be in [0, 1))", name, momentum)
	}
	return nil
}

func checkEps(name string, eps float64) error {
	if err := checkFinite(name, "eps", eps); err != nil {
		return err
	}
	if eps <= 0 {
		return configErrorf("%s: invalid epsilon %v (must be > 0)", name, eps)
	}
	return nil
}

func checkWeightDecay(name string, wd float64) error {
	if err := checkFinite(name, "weight_decay", wd); err != nil {
		return err
	}
	if wd < 0 {
		return configErrorf("%s: invalid weight_decay %v (must be >= 0)", name, wd)
	}
	return nil
}
