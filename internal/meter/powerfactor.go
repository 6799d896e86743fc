package meter

import (
	"math"

	"github.com/resident-x/go-vmeter/internal/domain"
)

// pfEpsilon guards the power-factor division against near-zero apparent
// power caused by reading noise.
const pfEpsilon = 1e-6

// clip bounds a power factor to the physically meaningful interval [-1, 1].
// Out-of-range ratios occur in practice because the U, I and P registers are
// not read atomically; they are clamped, not rejected.
func clip(pf float64) float64 {
	if pf > 1.0 {
		return 1.0
	}
	if pf < -1.0 {
		return -1.0
	}
	return pf
}

// phasePowerFactor computes cos phi = P / (U*I) for one phase. The result is
// absent when any input is absent or the apparent power is too close to
// zero to divide by.
func phasePowerFactor(p, u, i domain.Reading) domain.Reading {
	if !p.Valid || !u.Valid || !i.Valid {
		return domain.Absent()
	}
	denom := u.Value * i.Value
	if math.Abs(denom) < pfEpsilon {
		return domain.Absent()
	}
	return domain.NewReading(clip(p.Value / denom))
}

// DerivePowerFactors computes cos phi per phase and in total and writes the
// PF_L1, PF_L2, PF_L3 and PF_total fields into the snapshot.
//
// The total divides total active power by the apparent power summed over the
// phases that have both voltage and current; a phase with missing data
// contributes nothing instead of forcing the total absent. The derivation
// degrades field by field so that transient UDP packet loss never collapses
// the whole power-factor set.
func DerivePowerFactors(snap *domain.Snapshot) {
	for _, phase := range domain.Phases {
		snap.Set(domain.FieldPowerFactor(phase), phasePowerFactor(
			snap.Get(domain.FieldPower(phase)),
			snap.Get(domain.FieldVoltage(phase)),
			snap.Get(domain.FieldCurrent(phase)),
		))
	}

	total := snap.Get(domain.FieldTotalPower)
	if !total.Valid {
		snap.Set(domain.FieldTotalPowerFactor, domain.Absent())
		return
	}

	var apparent float64
	for _, phase := range domain.Phases {
		u := snap.Get(domain.FieldVoltage(phase))
		i := snap.Get(domain.FieldCurrent(phase))
		if u.Valid && i.Valid {
			apparent += math.Abs(u.Value * i.Value)
		}
	}
	// Note the inclusive comparison: an all-zero or fully missing apparent
	// power yields an absent total.
	if apparent <= pfEpsilon {
		snap.Set(domain.FieldTotalPowerFactor, domain.Absent())
		return
	}
	snap.Set(domain.FieldTotalPowerFactor, domain.NewReading(clip(total.Value/apparent)))
}
