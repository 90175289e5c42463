package store

import (
	"context"

	"tilespace-backend/pkg/database"
)

// Session resolves the authenticated owner for every gateway call. It must
// fail closed with database.ErrNotAuthenticated when nobody is signed in.
type Session interface {
	UserID(ctx context.Context) (string, error)
}

// StaticSession is a fixed owner id (CLI, tests).
type StaticSession string

func (s StaticSession) UserID(context.Context) (string, error) {
	if s == "" {
		return "", database.ErrNotAuthenticated
	}
	return string(s), nil
}

// SessionFunc adapts a function, e.g. a lookup of the request's user.
type SessionFunc func(ctx context.Context) (string, error)

func (f SessionFunc) UserID(ctx context.Context) (string, error) {
	id, err := f(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", database.ErrNotAuthenticated
	}
	return id, nil
}
