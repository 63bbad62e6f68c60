// Package repository provides the credential lookups behind the translators.
package repository

import (
	"context"
	"crypto/subtle"

	"golang.org/x/exp/slices"

	"meshtranslator/internal/translator"
)

// Entry assigns a credential to a subject
type Entry struct {
	SubjectID  string
	Credential translator.Credential
}

// Static is an immutable in-memory credential repository. LookupSubject
// returns the first entry in order that matches, so subjects sharing a
// credential always resolve the same way.
type Static struct {
	entries   []Entry
	bySubject map[string]int
}

var _ translator.CredentialRepository = (*Static)(nil)

// NewStatic creates a repository from subject id to credential pairs,
// ordered by subject id. The map is copied.
func NewStatic(entries map[string]translator.Credential) *Static {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	ordered := make([]Entry, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, Entry{SubjectID: id, Credential: entries[id]})
	}
	return NewOrdered(ordered)
}

// NewOrdered creates a repository that keeps the given order. When a
// subject id repeats, the first entry wins.
func NewOrdered(entries []Entry) *Static {
	s := &Static{
		entries:   make([]Entry, 0, len(entries)),
		bySubject: make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		if _, ok := s.bySubject[entry.SubjectID]; ok {
			continue
		}
		s.bySubject[entry.SubjectID] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return s
}

// Len returns the number of subjects
func (s *Static) Len() int {
	return len(s.entries)
}

// LookupCredential returns the credential of subjectID
func (s *Static) LookupCredential(_ context.Context, subjectID string) (translator.Credential, bool, error) {
	i, ok := s.bySubject[subjectID]
	if !ok {
		return translator.Credential{}, false, nil
	}
	return s.entries[i].Credential, true, nil
}

// LookupSubject returns the first subject owning cred
func (s *Static) LookupSubject(_ context.Context, cred translator.Credential) (string, bool, error) {
	for _, entry := range s.entries {
		if entry.Credential.Username == cred.Username && passwordEqual(entry.Credential.Password, cred.Password) {
			return entry.SubjectID, true, nil
		}
	}
	return "", false, nil
}

func passwordEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
