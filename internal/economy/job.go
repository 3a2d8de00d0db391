package economy

import (
	"slices"

	"github.com/talgya/starcolony/internal/pops"
)

// JobID identifies a job within its colony.
type JobID uint32

// Category keys a job's non-resource effects.
type Category string

const (
	CategoryFarmer      Category = "farmer"
	CategoryMiner       Category = "miner"
	CategoryTechnician  Category = "technician"
	CategoryClerk       Category = "clerk"
	CategoryScientist   Category = "scientist"
	CategoryLaborer     Category = "laborer"
	CategorySecurity    Category = "security"
	CategoryEntertainer Category = "entertainer"
	CategoryDoctor      Category = "doctor"
	CategoryTeacher     Category = "teacher"
	CategoryLeadership  Category = "leadership"
)

// JobTemplate is the catalog description of a job.
type JobTemplate struct {
	Name         string       `yaml:"name" json:"name"`
	Category     Category     `yaml:"category" json:"category"`
	MinStratum   pops.Stratum `yaml:"min_stratum" json:"min_stratum"`
	MinEducation int          `yaml:"min_education" json:"min_education"`
	BaseOutput   float64      `yaml:"base_output" json:"base_output"`
	Resource     Resource     `yaml:"resource" json:"resource"`
	Priority     int          `yaml:"priority" json:"priority"`
}

// Job is a block of work slots. Assigned maps pop id to worker count; jobs never own pops.
type Job struct {
	ID           JobID              `json:"id"`
	Name         string             `json:"name"`
	Category     Category           `json:"category"`
	TotalSlots   int                `json:"total_slots"`
	Assigned     map[pops.PopID]int `json:"assigned,omitempty"`
	MinStratum   pops.Stratum       `json:"min_stratum"`
	MinEducation int                `json:"min_education"`
	BaseOutput   float64            `json:"base_output"`
	Resource     Resource           `json:"resource"`
	Priority     int                `json:"priority"`
	Building     uint32             `json:"building,omitempty"` // Owning building, 0 for founding jobs
	BaseSlots    int                `json:"base_slots"`         // Slots at building level 1
}

// NewJob instantiates a template with the given slot count.
func NewJob(id JobID, t JobTemplate, slots int, building uint32) *Job {
	return &Job{
		ID:           id,
		Name:         t.Name,
		Category:     t.Category,
		TotalSlots:   max(slots, 0),
		Assigned:     make(map[pops.PopID]int),
		MinStratum:   t.MinStratum,
		MinEducation: t.MinEducation,
		BaseOutput:   t.BaseOutput,
		Resource:     t.Resource,
		Priority:     t.Priority,
		Building:     building,
		BaseSlots:    max(slots, 0),
	}
}

// Filled returns the number of occupied slots.
func (j *Job) Filled() int {
	n := 0
	for _, c := range j.Assigned {
		n += c
	}
	return n
}

// Remaining returns the number of open slots.
func (j *Job) Remaining() int {
	return max(j.TotalSlots-j.Filled(), 0)
}

// Eligible reports whether a pop meets the job's stratum and education floor.
func (j *Job) Eligible(p *pops.Pop) bool {
	return p.Stratum >= j.MinStratum && p.Education >= j.MinEducation
}

// AssignWorkers assigns up to n workers from pop, clipped to open capacity.
// Returns the number actually assigned.
func (j *Job) AssignWorkers(pop pops.PopID, n int) int {
	n = min(n, j.Remaining())
	if n <= 0 {
		return 0
	}
	if j.Assigned == nil {
		j.Assigned = make(map[pops.PopID]int)
	}
	j.Assigned[pop] += n
	return n
}

// RemoveWorkers unassigns up to n workers from pop. Returns the number removed.
func (j *Job) RemoveWorkers(pop pops.PopID, n int) int {
	cur := j.Assigned[pop]
	n = min(n, cur)
	if n <= 0 {
		return 0
	}
	if cur == n {
		delete(j.Assigned, pop)
	} else {
		j.Assigned[pop] = cur - n
	}
	return n
}

// ClearWorkers empties every slot.
func (j *Job) ClearWorkers() {
	clear(j.Assigned)
}

// AddSlots opens n more slots.
func (j *Job) AddSlots(n int) {
	if n > 0 {
		j.TotalSlots += n
	}
}

// RemoveSlots closes n slots, laying off workers from the highest pop id down until
// the job fits. Returns how many workers were laid off.
func (j *Job) RemoveSlots(n int) int {
	if n <= 0 {
		return 0
	}
	j.TotalSlots = max(j.TotalSlots-n, 0)
	return j.fitSlots()
}

// SetSlots resizes the job to exactly n slots, laying off as RemoveSlots does.
func (j *Job) SetSlots(n int) int {
	n = max(n, 0)
	if n >= j.TotalSlots {
		j.AddSlots(n - j.TotalSlots)
		return 0
	}
	return j.RemoveSlots(j.TotalSlots - n)
}

func (j *Job) fitSlots() int {
	excess := j.Filled() - j.TotalSlots
	if excess <= 0 {
		return 0
	}
	ids := make([]pops.PopID, 0, len(j.Assigned))
	for id := range j.Assigned {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	laidOff := 0
	for i := len(ids) - 1; i >= 0 && excess > 0; i-- {
		n := j.RemoveWorkers(ids[i], excess)
		excess -= n
		laidOff += n
	}
	return laidOff
}

// CalculateOutput converts filled slots into the job's resource: base × filled × mod.
func (j *Job) CalculateOutput(mod float64) Bundle {
	var out Bundle
	filled := j.Filled()
	if filled == 0 || j.Resource == ResourceNone {
		return out
	}
	out.Add(j.Resource, j.BaseOutput*float64(filled)*mod)
	return out
}
