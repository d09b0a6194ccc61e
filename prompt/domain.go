package prompt

// DomainConfig customizes prompt composition for a research domain.
type DomainConfig struct {
	Name                    string
	Description             string
	ConceptCategories       []string
	PrioritySources         []string
	ExtraIntentInstructions string
}

// DomainFor returns the configuration for a named domain, or nil for
// "general" and anything unknown.
func DomainFor(domain string) *DomainConfig {
	switch domain {
	case "materials_science":
		return &materialsScience
	default:
		return nil
	}
}

var materialsScience = DomainConfig{
	Name:        "materials_science",
	Description: "Materials science and engineering",
	ConceptCategories: []string{
		"Material System (composition, crystal structure, morphology)",
		"Processing (synthesis, heat treatment, deposition, sintering)",
		"Structure (grain size, texture, defects, interfaces, porosity)",
		"Properties (mechanical, electrical, thermal, magnetic, optical)",
		"Mechanism/Model (phase transformation, diffusion, DFT, MD, CALPHAD)",
		"Application/Constraints (service environment, cost, scalability)",
	},
	PrioritySources: []string{
		"semantic_scholar",
		"scopus",
		"web_of_science",
	},
	ExtraIntentInstructions: `When analyzing materials science queries, also identify:
- Specific material families (oxides, sulfides, polymers, composites, coatings)
- Test standards (ASTM, ISO, IEC) if applicable
- Computational methods (DFT, MD, CALPHAD, phase-field) if applicable
- Whether the query implies structural/crystallographic data needs (ICSD, COD, Materials Project)
- Whether the query implies phase diagram or thermodynamic data needs
`,
}
