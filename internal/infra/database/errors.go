package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrLeadNotFound = fmt.Errorf("lead not found")
var ErrDuplicatePhone = fmt.Errorf("lead with this phone already exists")
var ErrEmployeeNotFound = fmt.Errorf("employee not found")
var ErrNotificationNotFound = fmt.Errorf("notification not found")

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
