package audit

// jsonOutcome is the wire shape from spec §6: a single object whose fields
// vary by conclusion, plus an optional suggest block on vetting failure.
type jsonOutcome struct {
	Context    *jsonContext      `json:"context,omitempty"`
	Conclusion string            `json:"conclusion"`
	VettedFully []jsonPackage    `json:"vetted_fully,omitempty"`
	VettedPartially []jsonPackage `json:"vetted_partially,omitempty"`
	VettedWithExemptions []jsonPackage `json:"vetted_with_exemptions,omitempty"`
	Failures   []jsonFailure     `json:"failures,omitempty"`
	Suggest    *jsonSuggest      `json:"suggest,omitempty"`
}

type jsonContext struct {
	StorePath string   `json:"store_path"`
	Criteria  []string `json:"criteria"`
}

type jsonPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type jsonFailure struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Missing []string `json:"missing_criteria"`
}

type jsonSuggestedAudit struct {
	Name            string   `json:"name"`
	SuggestedDiff   string   `json:"suggested_diff"`
	SuggestedCriteria []string `json:"suggested_criteria"`
	Confident       bool     `json:"confident"`
	NotableParents  []string `json:"notable_parents,omitempty"`
}

type jsonSuggestGroup struct {
	Criteria    []string             `json:"criteria"`
	Suggestions []jsonSuggestedAudit `json:"suggestions"`
}

type jsonSuggest struct {
	Suggestions     []jsonSuggestedAudit `json:"suggestions"`
	SuggestByCriteria []jsonSuggestGroup `json:"suggest_by_criteria"`
	TotalLines      int                  `json:"total_lines"`
}

// ToJSON renders an Outcome into the wire shape from spec §6. storePath and
// declaredCriteria are supplied by the CLI layer (they're not part of the
// pure in-memory Outcome).
func (o Outcome) ToJSON(storePath string, declaredCriteria []CriteriaName) interface{} {
	out := jsonOutcome{
		Context: &jsonContext{StorePath: storePath, Criteria: namesToStrings(declaredCriteria)},
		Conclusion: o.Conclusion.String(),
	}
	for _, p := range o.Success {
		jp := jsonPackage{Name: string(p.Package), Version: p.Version.String()}
		switch p.Vetted {
		case VettedFully:
			out.VettedFully = append(out.VettedFully, jp)
		case VettedPartially:
			out.VettedPartially = append(out.VettedPartially, jp)
		case VettedWithExemptions:
			out.VettedWithExemptions = append(out.VettedWithExemptions, jp)
		}
	}
	for _, f := range o.Failures {
		out.Failures = append(out.Failures, jsonFailure{
			Name: string(f.Package), Version: f.Version.String(), Missing: namesToStrings(f.Missing),
		})
	}
	if o.Suggestion != nil {
		out.Suggest = suggestionToJSON(*o.Suggestion)
	}
	return out
}

func suggestionToJSON(s Suggestion) *jsonSuggest {
	js := &jsonSuggest{TotalLines: s.TotalLines}
	for _, a := range s.All {
		js.Suggestions = append(js.Suggestions, suggestedAuditToJSON(a))
	}
	for _, g := range s.ByCriteria {
		jg := jsonSuggestGroup{Criteria: namesToStrings(g.Criteria)}
		for _, a := range g.Suggestions {
			jg.Suggestions = append(jg.Suggestions, suggestedAuditToJSON(a))
		}
		js.SuggestByCriteria = append(js.SuggestByCriteria, jg)
	}
	return js
}

func suggestedAuditToJSON(a SuggestedAudit) jsonSuggestedAudit {
	delta := Delta{To: a.Target}
	if !a.Anchor.IsRoot() {
		from := a.Anchor
		delta.From = &from
	}
	return jsonSuggestedAudit{
		Name:              string(a.Package),
		SuggestedDiff:     delta.String(),
		SuggestedCriteria: namesToStrings(a.Criteria),
		Confident:         a.Confident,
	}
}

func namesToStrings(names []CriteriaName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
