package restapi

import (
	"context"
	"errors"
	"net/http"

	"restfilter/internal/catalog"
	"restfilter/internal/filter"
	"restfilter/internal/planner"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers for privilege failures.
const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
)

var errNotFound = errors.New("not found")

// classify maps an error to a response status and the kind label used in
// metrics. Client errors expose their message; everything else is reported
// as an internal error.
func classify(err error) (status int, kind string) {
	var mysqlErr *mysql.MySQLError
	switch {
	case errors.Is(err, filter.ErrInvalidFilter):
		return http.StatusBadRequest, "invalid_filter"
	case errors.Is(err, planner.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, planner.ErrUnsupportedOperator):
		return http.StatusBadRequest, "unsupported_operator"
	case errors.Is(err, planner.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, ErrBadParameter):
		return http.StatusBadRequest, "bad_parameter"
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &mysqlErr) && isAccessDenied(mysqlErr):
		return http.StatusForbidden, "access_denied"
	default:
		return http.StatusInternalServerError, "database"
	}
}

func isAccessDenied(err *mysql.MySQLError) bool {
	switch err.Number {
	case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		return true
	}
	return false
}

// compileErrorKind reports whether err came from filter, sort or range
// compilation and returns its kind.
func compileErrorKind(err error) (string, bool) {
	status, kind := classify(err)
	if status != http.StatusBadRequest {
		return "", false
	}
	return kind, true
}
