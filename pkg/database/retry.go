package database

import (
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/marketsearch/pkg/retry"
)

// pgCannotConnectNow is reported while the server is starting up.
const pgCannotConnectNow = "57P03"

// startup is the policy used to reach a store at boot. Tests shorten it.
var startup = retry.Startup()

// migrationRetry retries only while the server is unreachable; SQL errors
// in a migration are final.
func migrationRetry() retry.Policy {
	p := startup
	p.Retryable = isConnectionError
	return p
}

// isConnectionError reports whether err is a transient connection problem
// rather than a SQL error. Server-side errors are final except "cannot
// connect now".
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCannotConnectNow
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || pgconn.SafeToRetry(err)
}
