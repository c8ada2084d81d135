package partner

import "errors"

var (
	// ErrNotFound is returned when no partner has the given id
	ErrNotFound = errors.New("partner not found")

	// ErrNoSubscriptions is returned when registering without any event type
	ErrNoSubscriptions = errors.New("eventosSuscritos must contain at least one event type")

	// ErrInvalidPartner is returned when name or webhook url are unusable
	ErrInvalidPartner = errors.New("invalid partner")

	// ErrAlreadyExists is returned by stores when an id is reused
	ErrAlreadyExists = errors.New("partner already exists")
)
