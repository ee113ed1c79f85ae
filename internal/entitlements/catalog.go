package entitlements

// Tool is a catalog entry for a gated premium feature. Static reference
// data: the engine reads it, never mutates it.
type Tool struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Tiers []Tier `json:"tiers"`
}

// eligible reports whether the tool is in the tier's allow-list. The tier
// must already be normalized.
func (t Tool) eligible(tier Tier) bool {
	for _, candidate := range t.Tiers {
		if candidate == tier {
			return true
		}
	}
	return false
}

// Catalog indexes the tool list by slug while keeping a stable order for
// listings and tier syncs.
type Catalog struct {
	tools  []Tool
	bySlug map[string]Tool
}

// NewCatalog builds a catalog from the given tools. A later duplicate of a
// slug replaces the earlier entry in place, keeping its position.
func NewCatalog(tools ...Tool) *Catalog {
	catalog := &Catalog{bySlug: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if _, seen := catalog.bySlug[tool.Slug]; seen {
			for i := range catalog.tools {
				if catalog.tools[i].Slug == tool.Slug {
					catalog.tools[i] = tool
					break
				}
			}
		} else {
			catalog.tools = append(catalog.tools, tool)
		}
		catalog.bySlug[tool.Slug] = tool
	}
	return catalog
}

// DefaultCatalog returns the platform's built-in tool list.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Tool{Slug: "ai-grading", Name: "AI Grading Assistant", Tiers: []Tier{TierStarter, TierEnterprise}},
		Tool{Slug: "ai-lesson-planner", Name: "AI Lesson Planner", Tiers: []Tier{TierStarter, TierEnterprise}},
		Tool{Slug: "question-bank", Name: "Question Bank", Tiers: []Tier{TierStarter, TierEnterprise}},
		Tool{Slug: "parent-portal", Name: "Parent Portal", Tiers: []Tier{TierFree, TierStarter, TierEnterprise}},
		Tool{Slug: "report-insights", Name: "Report Insights", Tiers: []Tier{TierEnterprise}},
		Tool{Slug: "timetable-optimizer", Name: "Timetable Optimizer", Tiers: []Tier{TierEnterprise}},
	)
}

// Tool looks a tool up by slug.
func (c *Catalog) Tool(slug string) (Tool, bool) {
	tool, ok := c.bySlug[slug]
	return tool, ok
}

// Tools returns the catalog in definition order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}
