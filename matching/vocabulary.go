package matching

// Category groups vocabulary terms by the preference field they feed.
type Category string

const (
	CategoryCity       Category = "city"
	CategoryReligion   Category = "religion"
	CategoryOccupation Category = "occupation"
	CategoryTrait      Category = "trait"
)

// Term is one entry of the closed extraction vocabulary.
type Term struct {
	Text     string
	Category Category
}

// Vocabulary is the closed keyword table scanned by the extractor. Terms are
// lowercase and are matched by substring containment, so short terms such as
// "it" and "ca" also match inside longer words.
var Vocabulary = []Term{
	{"mumbai", CategoryCity},
	{"delhi", CategoryCity},
	{"bangalore", CategoryCity},
	{"chennai", CategoryCity},
	{"hyderabad", CategoryCity},
	{"pune", CategoryCity},
	{"kolkata", CategoryCity},
	{"ahmedabad", CategoryCity},

	{"hindu", CategoryReligion},
	{"muslim", CategoryReligion},
	{"christian", CategoryReligion},
	{"sikh", CategoryReligion},
	{"buddhist", CategoryReligion},
	{"jain", CategoryReligion},

	{"doctor", CategoryOccupation},
	{"engineer", CategoryOccupation},
	{"teacher", CategoryOccupation},
	{"business", CategoryOccupation},
	{"it", CategoryOccupation},
	{"software", CategoryOccupation},
	{"ca", CategoryOccupation},
	{"lawyer", CategoryOccupation},

	{"family oriented", CategoryTrait},
	{"ambitious", CategoryTrait},
	{"traditional", CategoryTrait},
	{"modern", CategoryTrait},
	{"educated", CategoryTrait},
	{"caring", CategoryTrait},
	{"understanding", CategoryTrait},
}

// TermsFor returns the vocabulary terms of one category in table order.
func TermsFor(c Category) []string {
	var terms []string
	for _, t := range Vocabulary {
		if t.Category == c {
			terms = append(terms, t.Text)
		}
	}
	return terms
}
