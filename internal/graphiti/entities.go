package graphiti

// Entity labels used by the scientific paper graph schema.
const (
	EntityPaper         = "Paper"
	EntityAuthor        = "Author"
	EntityAffiliation   = "Affiliation"
	EntitySection       = "Section"
	EntityCitation      = "Citation"
	EntityReference     = "Reference"
	EntityKeyword       = "Keyword"
	EntityResearchField = "ResearchField"
	EntityVenue         = "Venue"
)

// EntityTypes maps each entity label to the description sent with every
// episode so the extraction pipeline knows what to look for.
var EntityTypes = map[string]string{
	EntityPaper:         "A scientific paper with title, abstract and publication metadata.",
	EntityAuthor:        "A person who authored or co-authored a paper.",
	EntityAffiliation:   "An institution an author is affiliated with.",
	EntitySection:       "A structural section of a paper, such as introduction or methods.",
	EntityCitation:      "An in-text citation from one paper to another work.",
	EntityReference:     "A bibliography entry listed at the end of a paper.",
	EntityKeyword:       "A keyword or key phrase describing a paper's topic.",
	EntityResearchField: "A research field or discipline a paper belongs to.",
	EntityVenue:         "A journal, conference or workshop where a paper appeared.",
}

// entityLabels returns the labels in a stable order for index statements.
func entityLabels() []string {
	return []string{
		EntityPaper, EntityAuthor, EntityAffiliation, EntitySection,
		EntityCitation, EntityReference, EntityKeyword, EntityResearchField,
		EntityVenue,
	}
}
