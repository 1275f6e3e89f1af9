package model

import "time"

// EntityStatus is the lifecycle state of a canonical entity.
type EntityStatus string

const (
	EntityActive     EntityStatus = "ACTIVE"
	EntityMerged     EntityStatus = "MERGED"
	EntitySplit      EntityStatus = "SPLIT"
	EntityAnonymized EntityStatus = "ANONYMIZED"
)

// Identifier is a validated national identifier attached to an entity.
// Identifiers are unique per (scheme, value) among ACTIVE entities.
type Identifier struct {
	ID     string `json:"id"`
	Scheme string `json:"scheme"` // "personnummer", "organisationsnummer"
	Value  string `json:"value"`  // canonical form
}

// Identifier schemes.
const (
	SchemePersonnummer = "personnummer"
	SchemeOrgnummer    = "organisationsnummer"
)

// Entity is a canonical, deduplicated record for a person, company, or
// address. MergedInto and SplitFrom are mutually exclusive with ACTIVE.
type Entity struct {
	ID          string       `json:"id"`
	Type        MentionType  `json:"type"`
	Status      EntityStatus `json:"status"`
	Name        string       `json:"name"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
	Attributes  Attributes   `json:"attributes"`
	MergedInto  string       `json:"merged_into,omitempty"`
	SplitFrom   string       `json:"split_from,omitempty"`

	// Version supports optimistic concurrency on structural mutation.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasIdentifier reports whether the entity carries the given identifier value
// under any scheme.
func (e *Entity) HasIdentifier(value string) bool {
	for _, id := range e.Identifiers {
		if id.Value == value {
			return true
		}
	}
	return false
}

// Attributes is the per-type attribute bag, represented as a tagged variant
// rather than an untyped map: exactly one of the pointers matching the
// owner's type is set.
type Attributes struct {
	Person  *PersonAttributes  `json:"person,omitempty"`
	Company *CompanyAttributes `json:"company,omitempty"`
	Address *AddressAttributes `json:"address,omitempty"`
}

// PersonAttributes holds person-specific fields.
type PersonAttributes struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Gender     string `json:"gender,omitempty"`     // "M" / "F"
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
}

// CompanyAttributes holds company-specific fields.
type CompanyAttributes struct {
	LegalName    string `json:"legal_name,omitempty"`
	LegalForm    string `json:"legal_form,omitempty"`
	SNICode      string `json:"sni_code,omitempty"`
	Street       string `json:"street,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	City         string `json:"city,omitempty"`
	RegisteredAt string `json:"registered_at,omitempty"` // YYYY-MM-DD
}

// AddressAttributes holds address-specific fields.
type AddressAttributes struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Kommun     string `json:"kommun,omitempty"`
}

// Street returns the street line regardless of variant, empty when unset.
func (a Attributes) StreetLine() string {
	switch {
	case a.Person != nil:
		return a.Person.Street
	case a.Company != nil:
		return a.Company.Street
	case a.Address != nil:
		if a.Address.Number != "" {
			return a.Address.Street + " " + a.Address.Number
		}
		return a.Address.Street
	}
	return ""
}

// PostalCode returns the postal code regardless of variant, empty when unset.
func (a Attributes) PostalCode() string {
	switch {
	case a.Person != nil:
		return a.Person.PostalCode
	case a.Company != nil:
		return a.Company.PostalCode
	case a.Address != nil:
		return a.Address.PostalCode
	}
	return ""
}

// BirthDate returns the person birth date, empty for non-person variants.
func (a Attributes) BirthDate() string {
	if a.Person != nil {
		return a.Person.BirthDate
	}
	return ""
}
