package vdbe

import (
	"errors"
)

var (
	ErrDuplicateLabelBinding = errors.New("label already resolved")
	ErrUnknownLabel          = errors.New("label not allocated")
	ErrUnresolvedLabel       = errors.New("unresolved label")
)
