// File: internal/screen/observation.go
package screen

// Observation is one fully-analyzed snapshot of the device UI.
type Observation struct {
	XML         string   `json:"-"`
	Package     string   `json:"package,omitempty"`
	Strings     []string `json:"observed_strings"`
	Type        Type     `json:"screen_type"`
	Features    Features `json:"quality_features"`
	Score       int      `json:"quality_score"`
	Fingerprint string   `json:"-"`
}

// Analyze runs the full observe pipeline over one page-source dump:
// string extraction, classification, feature extraction, scoring and
// fingerprinting. maxStrings bounds how many accessible strings are kept.
func Analyze(pageSourceXML string, maxStrings int) (Observation, error) {
	strs, err := ExtractStrings(pageSourceXML, maxStrings)
	if err != nil {
		return Observation{}, err
	}

	screenType := Classify(strs)
	features := ExtractFeatures(strs)
	return Observation{
		XML:         pageSourceXML,
		Package:     PackageName(pageSourceXML),
		Strings:     strs,
		Type:        screenType,
		Features:    features,
		Score:       Score(screenType, features),
		Fingerprint: Fingerprint(screenType, features, strs),
	}, nil
}
