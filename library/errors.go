package library

import (
	"errors"
	"fmt"
)

// NotFound is returned for pins which are not in the store
type NotFound PinID

func (e NotFound) Error() string {
	return fmt.Sprintf("No pin with id %s", string(e))
}

// PhotoNotFound is returned when a pin has no photo with the requested key
type PhotoNotFound string

func (e PhotoNotFound) Error() string {
	return fmt.Sprintf("No photo with key %s", string(e))
}

// PinAlreadyExists is returned when adding a pin whose ID is already used
type PinAlreadyExists PinID

func (e PinAlreadyExists) Error() string {
	return fmt.Sprintf("Pin with id %s already exists", string(e))
}

// IsNotFound is true for errors reporting a missing pin or photo
func IsNotFound(err error) bool {
	var pin NotFound
	var photo PhotoNotFound
	return errors.As(err, &pin) || errors.As(err, &photo)
}
