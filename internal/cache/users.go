package cache

import (
	"context"
	"time"

	"finledger/internal/core"
)

// UserSource loads a user by id.
type UserSource interface {
	UserByID(ctx context.Context, id string) (core.User, error)
}

// Users caches user lookups. The worker resolves the owner of every
// notification it sends and most events come from a handful of owners.
type Users struct {
	src UserSource
	lru *LRU[core.User]
}

func NewUsers(src UserSource, maxSize int, ttl time.Duration) *Users {
	return &Users{src: src, lru: NewLRU[core.User](maxSize, ttl)}
}

// UserByID serves from the cache and falls back to the source. Failed
// lookups are not cached.
func (u *Users) UserByID(ctx context.Context, id string) (core.User, error) {
	if user, ok := u.lru.Get(id); ok {
		return user, nil
	}
	user, err := u.src.UserByID(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	u.lru.Set(id, user)
	return user, nil
}

// CleanExpired drops expired users from the cache.
func (u *Users) CleanExpired() int {
	return u.lru.CleanExpired()
}
