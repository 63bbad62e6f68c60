package translator

import (
	"context"
	"log/slog"
)

// Credential is an application native username and password
type Credential struct {
	Username string
	Password string
}

// LogValue keeps the password out of logs
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// CredentialRepository resolves subjects and credentials. Both lookups are
// read-only and idempotent and may be called concurrently. ok is false when
// nothing matches; err is reserved for an unusable backend.
type CredentialRepository interface {
	LookupCredential(ctx context.Context, subjectID string) (cred Credential, ok bool, err error)
	LookupSubject(ctx context.Context, cred Credential) (subjectID string, ok bool, err error)
}
