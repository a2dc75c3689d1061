package secrets

import "fmt"

// Secret is one secret as reported by Bitwarden Secrets Manager.
type Secret struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	ProjectID      string `json:"projectId"`
	Key            string `json:"key"`
	Value          string `json:"value"`
	Note           string `json:"note"`
	CreationDate   string `json:"creationDate"`
	RevisionDate   string `json:"revisionDate"`
}

// String omits Value so secrets can be formatted with %v safely.
func (s Secret) String() string {
	return fmt.Sprintf("Secret{ID:%s Key:%s ProjectID:%s RevisionDate:%s}", s.ID, s.Key, s.ProjectID, s.RevisionDate)
}

// GoString omits Value for %#v as well.
func (s Secret) GoString() string {
	return s.String()
}

// Redacted returns a copy with Value masked.
func (s Secret) Redacted() Secret {
	if s.Value != "" {
		s.Value = "********"
	}
	return s
}

// Project is one project as reported by `bws project list`.
type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	CreationDate   string `json:"creationDate"`
	RevisionDate   string `json:"revisionDate"`
}

// Entry is a (key, secret) pair from the cache.
type Entry struct {
	Key    string
	Secret Secret
}

// Reader is the read side of the cache.
type Reader interface {
	Get(key string) (Secret, error)
	Value(key string) (string, error)
	Contains(key string) bool
	Len() int
}
