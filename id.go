package marketalert

import "github.com/ermey-enterprises/marketalert/id"

// ID is the primary identifier type for all marketalert entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
