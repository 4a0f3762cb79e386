package store

import "strings"

// RelationKind is the closed set of interpersonal relations the social
// memory understands. Free-form relation strings from the dialogue layer are
// normalized through ParseRelation; anything outside the set is rejected so
// raw text never reaches a query.
type RelationKind int

const (
	RelationMarried RelationKind = iota
	RelationFather
	RelationMother
	RelationBrother
	RelationSister
	RelationSon
	RelationDaughter
	RelationFriend
	RelationCousin
	RelationUncle
	RelationAunt
)

var relationNames = map[RelationKind]string{
	RelationMarried:  "married",
	RelationFather:   "father",
	RelationMother:   "mother",
	RelationBrother:  "brother",
	RelationSister:   "sister",
	RelationSon:      "son",
	RelationDaughter: "daughter",
	RelationFriend:   "friend",
	RelationCousin:   "cousin",
	RelationUncle:    "uncle",
	RelationAunt:     "aunt",
}

var relationEdges = map[RelationKind]EdgeType{
	RelationMarried:  "IS_MARRIED_TO",
	RelationFather:   "IS_FATHER_OF",
	RelationMother:   "IS_MOTHER_OF",
	RelationBrother:  "IS_BROTHER_OF",
	RelationSister:   "IS_SISTER_OF",
	RelationSon:      "IS_SON_OF",
	RelationDaughter: "IS_DAUGHTER_OF",
	RelationFriend:   "IS_FRIEND_OF",
	RelationCousin:   "IS_COUSIN_OF",
	RelationUncle:    "IS_UNCLE_OF",
	RelationAunt:     "IS_AUNT_OF",
}

// relationAliases maps spoken forms onto canonical kinds.
var relationAliases = map[string]RelationKind{
	"husband": RelationMarried,
	"wife":    RelationMarried,
	"spouse":  RelationMarried,
	"partner": RelationMarried,
}

// ParseRelation normalizes a relation string from the dialogue layer.
// The boolean is false for unrecognized relations.
func ParseRelation(s string) (RelationKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if kind, ok := relationAliases[s]; ok {
		return kind, true
	}
	for kind, name := range relationNames {
		if name == s {
			return kind, true
		}
	}
	return 0, false
}

// String returns the canonical predicate name used in fact files.
func (k RelationKind) String() string {
	return relationNames[k]
}

// EdgeType returns the fixed relationship type for the kind.
func (k RelationKind) EdgeType() EdgeType {
	return relationEdges[k]
}

// Symmetric reports whether the relation links both directions.
func (k RelationKind) Symmetric() bool {
	return k == RelationMarried
}
