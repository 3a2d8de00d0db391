package economy

// Effects are the non-resource contributions of staffed jobs.
type Effects struct {
	Stability  float64 `json:"stability"`
	Morale     float64 `json:"morale"`
	Health     float64 `json:"health"`
	Growth     float64 `json:"growth"`     // Fractional bonus on growth rate
	Education  float64 `json:"education"`  // Per-turn education gain for every pop
	Production float64 `json:"production"` // Fractional production multiplier bonus
}

// Per-worker effect rates and the cap on what one job can contribute.
const (
	securityStabilityPerWorker    = 0.2
	securityStabilityCap          = 5
	entertainerMoralePerWorker    = 0.2
	entertainerMoraleCap          = 5
	doctorHealthPerWorker         = 0.5
	doctorHealthCap               = 10
	doctorGrowthPerWorker         = 0.002
	doctorGrowthCap               = 0.05
	teacherEducationPerWorker     = 0.1
	teacherEducationCap           = 2
	leadershipProductionPerWorker = 0.01
	leadershipProductionCap       = 0.25
	leadershipStabilityPerWorker  = 0.1
	leadershipStabilityCap        = 3
)

// SpecialEffects returns the category effects of the job's filled slots.
func (j *Job) SpecialEffects() Effects {
	var e Effects
	w := float64(j.Filled())
	if w == 0 {
		return e
	}
	switch j.Category {
	case CategorySecurity:
		e.Stability = min(w*securityStabilityPerWorker, securityStabilityCap)
	case CategoryEntertainer:
		e.Morale = min(w*entertainerMoralePerWorker, entertainerMoraleCap)
	case CategoryDoctor:
		e.Health = min(w*doctorHealthPerWorker, doctorHealthCap)
		e.Growth = min(w*doctorGrowthPerWorker, doctorGrowthCap)
	case CategoryTeacher:
		e.Education = min(w*teacherEducationPerWorker, teacherEducationCap)
	case CategoryLeadership:
		e.Production = min(w*leadershipProductionPerWorker, leadershipProductionCap)
		e.Stability = min(w*leadershipStabilityPerWorker, leadershipStabilityCap)
	}
	return e
}

// Plus returns the field-wise sum.
func (e Effects) Plus(o Effects) Effects {
	return Effects{
		Stability:  e.Stability + o.Stability,
		Morale:     e.Morale + o.Morale,
		Health:     e.Health + o.Health,
		Growth:     e.Growth + o.Growth,
		Education:  e.Education + o.Education,
		Production: e.Production + o.Production,
	}
}
