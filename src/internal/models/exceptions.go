package models

import "errors"

var (
	ErrRedisGet    = errors.New("redis get error")
	ErrRedisSet    = errors.New("redis set error")
	ErrRedisDelete = errors.New("redis delete error")
	ErrRedisExpire = errors.New("redis expire error")
)

var (
	ErrSessionLost      = errors.New("session liveness marker expired")
	ErrSessionIDInvalid = errors.New("invalid session id")
	ErrSessionCreating  = errors.New("error creating session")
	ErrSessionRemoving  = errors.New("error removing session")
)

var (
	ErrDatabaseQuery  = errors.New("database query error")
	ErrDatabaseUpdate = errors.New("database update error")
	ErrRecordNotFound = errors.New("record not found")
)

var (
	ErrEventPublish       = errors.New("status event publish error")
	ErrSubscriptionUpdate = errors.New("subscription index update error")
	ErrRealtimePublish    = errors.New("realtime channel publish error")
)
