package domain

// CastAssignment links a person to a character credit on a media entity.
type CastAssignment struct {
	MediaID       string
	PersonName    string
	CharacterName string
	Role          string
	Ordinal       int
}

// Cast roles accepted by the catalog.
const (
	RoleMain       = "main"
	RoleSupporting = "supporting"
)
