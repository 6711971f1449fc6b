package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no resource for the specified ID")
	ErrNotOwned         = errors.New("the resource does not belong to the requesting user")
)
