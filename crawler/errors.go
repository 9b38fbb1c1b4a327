package crawler

import "errors"

// ErrNoSeeds is returned when a crawl is requested with an empty seed list.
var ErrNoSeeds = errors.New("crawler: no seeds provided")

// ErrInvalidSeed is returned when a seed URL cannot be normalized.
var ErrInvalidSeed = errors.New("crawler: invalid seed URL")
