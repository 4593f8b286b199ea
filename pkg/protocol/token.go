package protocol

import "time"

// Claims is the identity carried by a verified token. Authorization —
// whether User is an admin or a registered storage node — is decided
// by the caller against pkg/users, not encoded in the token itself.
type Claims struct {
	User      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthTokenIssuer is the non-goal token service: issuing and
// verifying the bearer tokens spec.md §6 requires on every mutating
// route. Production deployments are expected to swap in a real token
// service; pkg/protocol ships only the HMAC-SHA256 adapter needed to
// exercise the rest of the system.
type AuthTokenIssuer interface {
	Issue(user string) (string, error)
	Verify(token string) (Claims, error)
}
