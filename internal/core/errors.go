package core

import "errors"

// ErrPlanNotFound is returned when a (planId, billingCycle) pair has no
// entry in the price catalog. Handlers map it to 400.
var ErrPlanNotFound = errors.New("plan or billing cycle not found in price catalog")
