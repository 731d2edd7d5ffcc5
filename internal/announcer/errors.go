package announcer

import "errors"

// errNoTrackers is returned when every tier is empty or every tracker in
// every tier failed.
var errNoTrackers = errors.New("announcer: no tracker answered")
