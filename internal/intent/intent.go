// Package intent assigns a query intent to an incoming message so the
// gateway can precompute exact aggregates before the model is called. The
// matching is deliberately lexical: the model handles natural-language
// queries on its own via the full inventory grounding, the classifier only
// covers the arithmetic the model is unreliable at.
package intent

import "strings"

type Intent string

const (
	Categories Intent = "categories"
	StockTotal Intent = "stock-total"
	ValueTotal Intent = "value-total"
	Search     Intent = "search"
	None       Intent = "none"
)

// matchers are evaluated in order; the first hit wins. Keeping this a table
// makes the tie-break between overlapping keyword sets explicit.
var matchers = []struct {
	intent   Intent
	keywords []string
}{
	{Categories, []string{"categorías", "categorias", "tipos"}},
	{StockTotal, []string{"stock total", "cuánto stock", "cuanto stock", "suma"}},
	{ValueTotal, []string{"valor total", "costo total", "precio total"}},
	{Search, []string{"buscar", "mostrar", "productos"}},
}

// stopwords excluded from extracted search terms, alongside anything of two
// runes or fewer.
var stopwords = map[string]struct{}{
	"buscar": {}, "mostrar": {}, "productos": {}, "producto": {},
	"dame": {}, "quiero": {}, "necesito": {}, "tienes": {}, "tienen": {},
	"algo": {}, "algún": {}, "algun": {}, "alguna": {},
	"para": {}, "por": {}, "con": {}, "sin": {}, "sobre": {},
	"los": {}, "las": {}, "una": {}, "uno": {}, "unos": {}, "unas": {},
	"del": {}, "que": {}, "qué": {}, "cual": {}, "cuál": {},
	"hay": {}, "como": {}, "cómo": {}, "más": {}, "mas": {}, "muy": {},
}

// Classify returns the intent for a message plus the search terms when the
// intent is Search. Messages whose significant words are all stopwords fall
// through to None: the model still answers, grounded on the full inventory.
func Classify(text string) (Intent, []string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return None, nil
	}
	lower := strings.ToLower(trimmed)

	for _, m := range matchers {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				if m.intent != Search {
					return m.intent, nil
				}
				break
			}
		}
	}

	// Explicit search keywords and the no-keyword fallback both resolve to
	// a term search; without usable terms the turn is pure conversation.
	terms := Terms(trimmed)
	if len(terms) == 0 {
		return None, nil
	}
	return Search, terms
}

// Terms extracts the significant words of a message: lowercased, longer
// than two runes and not a stopword.
func Terms(text string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?¿¡\"'()")
		if len([]rune(word)) <= 2 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}
