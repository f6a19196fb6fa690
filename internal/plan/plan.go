package plan

import (
	"fmt"
	"math/rand"
	"os"

	"mapleads/internal/logger"

	"gopkg.in/yaml.v3"
)

// Category is one business vertical with its literal search-term synonyms.
// Synonyms are enumerated as distinct tasks on purpose: different terms
// surface different result sets.
type Category struct {
	Key         string   `yaml:"key"`
	Label       string   `yaml:"label"`
	SearchTerms []string `yaml:"search_terms"`
}

type City struct {
	Name  string   `yaml:"name"`
	Zones []string `yaml:"zones"`
}

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

type locationsFile struct {
	Cities []City `yaml:"cities"`
}

// Task is one (search term, location) unit of work. Identity is the literal
// pair; it is also the ledger key.
type Task struct {
	CategoryKey string
	Term        string
	Location    string
}

// Key is the persisted completion-set key for this task.
func (t Task) Key() string { return t.Term + "|" + t.Location }

// LoadCategories parses the category config file.
func LoadCategories(path string) ([]Category, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	return f.Categories, nil
}

// LoadLocations parses the location config file and flattens it into
// searchable location strings: each "Zone, City" plus the bare city.
func LoadLocations(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	var f locationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	var out []string
	for _, city := range f.Cities {
		for _, z := range city.Zones {
			if z != "" {
				out = append(out, z+", "+city.Name)
			}
		}
		if city.Name != "" {
			out = append(out, city.Name)
		}
	}
	return out, nil
}

// Build computes the full (term × location) cross product and shuffles it so
// consecutive tasks rarely hit the same location or category back to back.
// Each category contributes its label plus at most two extra synonyms.
func Build(categories []Category, locations []string) []Task {
	log := logger.New("SearchPlan")

	var terms []struct{ key, term string }
	for _, c := range categories {
		seen := map[string]bool{}
		if c.Label != "" {
			terms = append(terms, struct{ key, term string }{c.Key, c.Label})
			seen[normalizeTerm(c.Label)] = true
		}
		extra := 0
		for _, t := range c.SearchTerms {
			if extra >= 2 {
				break
			}
			if t == "" || seen[normalizeTerm(t)] {
				continue
			}
			terms = append(terms, struct{ key, term string }{c.Key, t})
			seen[normalizeTerm(t)] = true
			extra++
		}
	}

	tasks := make([]Task, 0, len(terms)*len(locations))
	for _, tt := range terms {
		for _, loc := range locations {
			tasks = append(tasks, Task{CategoryKey: tt.key, Term: tt.term, Location: loc})
		}
	}

	rand.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
	log.LogInfof("generated %d search tasks from %d terms x %d locations", len(tasks), len(terms), len(locations))
	return tasks
}

// Pending filters the plan down to tasks not yet in the ledger.
func Pending(tasks []Task, ledger *Ledger) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !ledger.IsCompleted(t) {
			out = append(out, t)
		}
	}
	return out
}

func normalizeTerm(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b = append(b, r)
	}
	return string(b)
}
