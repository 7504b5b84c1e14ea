package store

import "errors"

// ErrNotFound is returned when no item matches an (itemType, id) pair.
var ErrNotFound = errors.New("item not found")

// ErrInvalidItemType is returned when an item type is outside the closed set.
var ErrInvalidItemType = errors.New("invalid item type")

// ErrInvalidVote is returned when a vote value is outside {-1, 0, +1}.
var ErrInvalidVote = errors.New("vote value must be -1, 0, or 1")
