package progress

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
)

type Stage struct {
	Number      int    `json:"stage" toml:"number"`
	Name        string `json:"name" toml:"name"`
	Description string `json:"description" toml:"description"`
	Weight      int    `json:"weight" toml:"-"`
}

// Catalog is the static stage lookup. Weights always come from the fixed table;
// a catalog file may only rename or redescribe stages.
type Catalog struct {
	stages map[int]Stage
}

var defaultStages = []Stage{
	{Number: 1, Name: "Ideation", Description: "Problem and solution hypothesis defined"},
	{Number: 2, Name: "Validation", Description: "Customer discovery and problem validation"},
	{Number: 3, Name: "Prototype", Description: "Working prototype built and tested with users"},
	{Number: 4, Name: "Pilot", Description: "Pilot deployment with early adopters"},
	{Number: 5, Name: "Market Entry", Description: "Commercial launch and first revenue"},
	{Number: 6, Name: "Scale", Description: "Growth, investment readiness and graduation"},
}

func DefaultCatalog() *Catalog {
	c := &Catalog{stages: make(map[int]Stage, len(defaultStages))}
	for _, s := range defaultStages {
		s.Weight = StageWeight(s.Number)
		c.stages[s.Number] = s
	}
	return c
}

type catalogFile struct {
	Stages []Stage `toml:"stage"`
}

// LoadCatalogFile 从 TOML 文件覆盖阶段名称与描述，未出现的阶段保留默认值
func LoadCatalogFile(path string) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode stage catalog %s: %w", path, err)
	}

	c := DefaultCatalog()
	for _, s := range f.Stages {
		if !model.ValidStage(s.Number) {
			return nil, fmt.Errorf("stage catalog %s: stage %d out of range", path, s.Number)
		}
		base := c.stages[s.Number]
		if s.Name != "" {
			base.Name = s.Name
		}
		if s.Description != "" {
			base.Description = s.Description
		}
		c.stages[s.Number] = base
	}
	return c, nil
}

func (c *Catalog) Get(stage int) (Stage, bool) {
	s, ok := c.stages[stage]
	return s, ok
}

// Name 返回阶段名称，未知阶段返回 "Stage N"
func (c *Catalog) Name(stage int) string {
	if s, ok := c.stages[stage]; ok {
		return s.Name
	}
	return fmt.Sprintf("Stage %d", stage)
}

func (c *Catalog) All() []Stage {
	out := make([]Stage, 0, len(c.stages))
	for _, s := range c.stages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
