package simulate

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var interventionTypes = []string{
	"short-intervention", "facilitates", "interruption",
	"long-intervention", "offensive", "explains",
}

var (
	personGenders = []string{"man", "woman", "non-binary"}
	surnames      = []string{"Álvarez", "Ávila", "Zamora", "Núñez", "Ortiz", "Peña", "Ibáñez", "Castro"}
	names         = []string{"Ana", "Luis", "Maite", "Iker", "Nerea", "Jon", "Alex", "Sara"}
)

// legacyShare is the fraction of interventions tagged with the legacy
// gender, which the service counts as unclassified.
const legacyShare = 0.02

// Person is an attendee registered before the session starts.
type Person struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Gender  string `json:"gender"`
	Online  bool   `json:"-"`
}

// Expected is the tally the service must converge to once every
// submission of a plan is applied.
type Expected struct {
	Total           int
	Buckets         map[string]map[string]int
	Unclassified    int
	Present         int
	PresentByGender map[string]int
}

// Plan is a fully generated session: who attends, what gets said, which
// submissions are retried and which are undone.
type Plan struct {
	People     []Person
	Increments []Submission
	Retries    []Submission
	Decrements []Submission
	Expected   Expected
}

// GeneratePlan builds a reproducible session from cfg. The same seed always
// yields the same people, genders and types; submission ids are fresh.
func GeneratePlan(cfg *Config) Plan {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	plan := Plan{
		People: make([]Person, cfg.People),
		Expected: Expected{
			Buckets:         make(map[string]map[string]int),
			PresentByGender: make(map[string]int),
		},
	}

	for i := range plan.People {
		p := Person{
			ID:      "sim-" + strconv.Itoa(i),
			Name:    names[rng.IntN(len(names))],
			Surname: surnames[rng.IntN(len(surnames))],
			Gender:  personGenders[rng.IntN(len(personGenders))],
			Online:  rng.IntN(3) == 0,
		}
		plan.People[i] = p
		plan.Expected.Present++
		plan.Expected.PresentByGender[p.Gender]++
	}

	plan.Increments = make([]Submission, cfg.Interventions)
	for i := range plan.Increments {
		s := Submission{
			ID:   uuid.NewString(),
			Type: interventionTypes[rng.IntN(len(interventionTypes))],
		}
		if rng.Float64() < legacyShare {
			s.Gender = "trans"
		} else {
			s.Gender = personGenders[rng.IntN(len(personGenders))]
		}
		plan.Increments[i] = s
		plan.Expected.add(s, 1)
	}

	for _, i := range pick(rng, len(plan.Increments), cfg.DuplicateRate) {
		plan.Retries = append(plan.Retries, plan.Increments[i])
	}

	for _, i := range pick(rng, len(plan.Increments), cfg.DecrementRate) {
		src := plan.Increments[i]
		d := Submission{ID: uuid.NewString(), Gender: src.Gender, Type: src.Type}
		plan.Decrements = append(plan.Decrements, d)
		plan.Expected.add(d, -1)
	}

	return plan
}

func (e *Expected) add(s Submission, delta int) {
	e.Total += delta
	if s.Gender == "trans" {
		e.Unclassified += delta
		return
	}
	if e.Buckets[s.Gender] == nil {
		e.Buckets[s.Gender] = make(map[string]int)
	}
	e.Buckets[s.Gender][s.Type] += delta
}

// pick returns distinct indexes in [0,n), roughly rate*n of them.
func pick(rng *rand.Rand, n int, rate float64) []int {
	if rate <= 0 || n == 0 {
		return nil
	}
	k := int(float64(n) * rate)
	if k > n {
		k = n
	}
	return rng.Perm(n)[:k]
}
