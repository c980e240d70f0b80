// Package categories provides the static bidirectional mapping between
// human-readable academic subfield names and arXiv classification codes.
//
// Several subfield names are shared verbatim across disciplines but map to
// different codes depending on the parent category ("Machine Learning" is
// both cs.LG and stat.ML, "Systems and Control" is both cs.SY and eess.SY),
// so resolution consults the topic's parent category before the name table.
package categories

import (
	"strings"

	"github.com/paperstream/paperstream/internal/domain"
)

// nameToCode is the primary subfield-name lookup table, keyed by lower-cased
// name. Ambiguous names carry their most common discipline's code here; the
// parent-context rules in CodeOf override them.
var nameToCode = map[string]string{
	// Computer Science
	"artificial intelligence":                 "cs.AI",
	"computation and language":                "cs.CL",
	"computational complexity":                "cs.CC",
	"computer vision and pattern recognition": "cs.CV",
	"computer vision":                         "cs.CV",
	"computers and society":                   "cs.CY",
	"cryptography and security":               "cs.CR",
	"databases":                               "cs.DB",
	"data structures and algorithms":          "cs.DS",
	"distributed computing":                   "cs.DC",
	"human-computer interaction":              "cs.HC",
	"information retrieval":                   "cs.IR",
	"machine learning":                        "cs.LG",
	"networking and internet architecture":    "cs.NI",
	"operating systems":                       "cs.OS",
	"programming languages":                   "cs.PL",
	"robotics":                                "cs.RO",
	"software engineering":                    "cs.SE",
	"systems and control":                     "cs.SY",

	// Mathematics
	"algebraic geometry":       "math.AG",
	"algebraic topology":       "math.AT",
	"combinatorics":            "math.CO",
	"dynamical systems":        "math.DS",
	"number theory":            "math.NT",
	"numerical analysis":       "math.NA",
	"optimization and control": "math.OC",
	"probability":              "math.PR",
	"statistics theory":        "math.ST",

	// Physics
	"astrophysics":                            "astro-ph",
	"condensed matter":                        "cond-mat",
	"general relativity and quantum cosmology": "gr-qc",
	"high energy physics - theory":            "hep-th",
	"mathematical physics":                    "math-ph",
	"quantum physics":                         "quant-ph",
	"fluid dynamics":                          "physics.flu-dyn",
	"optics":                                  "physics.optics",
	"plasma physics":                          "physics.plasm-ph",

	// Quantitative Biology
	"biomolecules":             "q-bio.BM",
	"genomics":                 "q-bio.GN",
	"neurons and cognition":    "q-bio.NC",
	"populations and evolution": "q-bio.PE",
	"quantitative methods":     "q-bio.QM",

	// Quantitative Finance
	"computational finance":              "q-fin.CP",
	"portfolio management":               "q-fin.PM",
	"pricing of securities":              "q-fin.PR",
	"risk management":                    "q-fin.RM",
	"statistical finance":                "q-fin.ST",
	"trading and market microstructure": "q-fin.TR",

	// Statistics
	"applications": "stat.AP",
	"computation":  "stat.CO",
	"methodology":  "stat.ME",

	// Electrical Engineering and Systems Science
	"audio and speech processing": "eess.AS",
	"image and video processing":  "eess.IV",
	"signal processing":           "eess.SP",

	// Economics
	"econometrics":          "econ.EM",
	"general economics":     "econ.GN",
	"theoretical economics": "econ.TH",
}

// codeToName is the reverse lookup, including the parent-disambiguated
// codes that nameToCode cannot represent.
var codeToName = func() map[string]string {
	m := make(map[string]string, len(nameToCode)+2)
	for name, code := range nameToCode {
		m[code] = titleCase(name)
	}
	// The ambiguous names resolve their disambiguated codes too.
	m["stat.ML"] = "Machine Learning"
	m["eess.SY"] = "Systems and Control"
	// Preferred casing where naive title-casing falls short.
	m["cs.CV"] = "Computer Vision and Pattern Recognition"
	m["cs.HC"] = "Human-Computer Interaction"
	m["hep-th"] = "High Energy Physics - Theory"
	return m
}()

// CodeOf resolves the classification code for a topic. Resolution order:
// parent-context disambiguation for Systems and Control under electrical
// engineering, then Machine Learning under statistics, then the primary
// name table keyed by subcategory. Topics without a subcategory (or with an
// unmapped one) report no code and the caller falls back to a free-text
// query clause.
func CodeOf(topic *domain.Topic) (string, bool) {
	category := strings.ToLower(strings.TrimSpace(topic.Category))
	sub := strings.ToLower(strings.TrimSpace(topic.SubCategory))

	if sub == "systems and control" && isElectricalEngineering(category) {
		return "eess.SY", true
	}
	if sub == "machine learning" && category == "statistics" {
		return "stat.ML", true
	}
	if sub == "" {
		return "", false
	}
	code, ok := nameToCode[sub]
	return code, ok
}

// NameOf returns the human-readable name for a classification code. Unknown
// codes are returned verbatim rather than dropped, so papers tagged with
// codes outside the table still display something meaningful.
func NameOf(code string) string {
	if name, ok := codeToName[code]; ok {
		return name
	}
	return code
}

func isElectricalEngineering(category string) bool {
	return category == "electrical engineering" ||
		category == "electrical engineering and systems science"
}

// titleCase capitalizes the first letter of each space-separated word. Good
// enough for taxonomy names; awkward cases are pinned in codeToName above.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" || w == "of" || w == "-" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
