package app

import "fmt"

// Application-level errors
var ErrInvalidLead = fmt.Errorf("lead needs a name, phone or email")
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrUnknownSweep = fmt.Errorf("unknown sweep")
var ErrInvalidStage = fmt.Errorf("unknown lead stage")
