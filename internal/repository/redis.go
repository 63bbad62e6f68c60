package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"meshtranslator/internal/translator"
)

const (
	fieldUsername = "username"
	fieldPassword = "password"
)

// Redis looks up credentials in redis. Each subject is a hash
// <prefix>subject:<id> with username and password fields, and
// <prefix>credential:<username> holds the subject id for reverse lookups.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ translator.CredentialRepository = (*Redis)(nil)

// NewRedis creates a repository on client using prefix for all keys
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) subjectKey(id string) string {
	return r.prefix + "subject:" + id
}

func (r *Redis) credentialKey(username string) string {
	return r.prefix + "credential:" + username
}

// LookupCredential returns the credential of subjectID
func (r *Redis) LookupCredential(ctx context.Context, subjectID string) (translator.Credential, bool, error) {
	values, err := r.client.HMGet(ctx, r.subjectKey(subjectID), fieldUsername, fieldPassword).Result()
	if err != nil {
		return translator.Credential{}, false, fmt.Errorf("redis lookup of subject failed: %w", err)
	}

	username, _ := values[0].(string)
	password, _ := values[1].(string)
	if username == "" {
		return translator.Credential{}, false, nil
	}
	return translator.Credential{Username: username, Password: password}, true, nil
}

// LookupSubject resolves cred through the reverse index and checks the
// stored password
func (r *Redis) LookupSubject(ctx context.Context, cred translator.Credential) (string, bool, error) {
	id, err := r.client.Get(ctx, r.credentialKey(cred.Username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis lookup of credential failed: %w", err)
	}

	stored, ok, err := r.LookupCredential(ctx, id)
	if err != nil || !ok {
		return "", false, err
	}
	if stored.Username != cred.Username || !passwordEqual(stored.Password, cred.Password) {
		return "", false, nil
	}
	return id, true, nil
}

// Close releases the redis connections
func (r *Redis) Close() error {
	return r.client.Close()
}
