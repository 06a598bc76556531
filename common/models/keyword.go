package models

// KeywordStatus is the approval state of a keyword
type KeywordStatus string

const (
	KeywordProposed KeywordStatus = "proposed"
	KeywordApproved KeywordStatus = "approved"
	KeywordRejected KeywordStatus = "rejected"
)

// Valid reports whether s is a known status
func (s KeywordStatus) Valid() bool {
	switch s {
	case KeywordProposed, KeywordApproved, KeywordRejected:
		return true
	}
	return false
}

// Vocabulary groups keywords that validate against a common keyword schema
type Vocabulary struct {
	ID       string `json:"id" yaml:"id"`
	SchemaID string `json:"schema_id" yaml:"schema_id"`
	Static   bool   `json:"static" yaml:"static"`
}

// Keyword is a node in a vocabulary's keyword tree
type Keyword struct {
	VocabularyID string         `json:"vocabulary_id"`
	ID           int            `json:"id"`
	Key          string         `json:"key"`
	Data         map[string]any `json:"data"`
	Status       KeywordStatus  `json:"status"`
	ParentID     *int           `json:"parent_id"`
}

// KeywordHierarchy is a keyword with its root-to-self ancestor path
type KeywordHierarchy struct {
	Keyword
	IDs  []int    `json:"ids"`
	Keys []string `json:"keys_"`
}

// KeywordInput is the payload of a keyword create, update or suggest request
type KeywordInput struct {
	Key      string         `json:"key"`
	Data     map[string]any `json:"data"`
	Status   KeywordStatus  `json:"status,omitempty"`
	ParentID *int           `json:"parent_id,omitempty"`
}
