package config

import (
	"fmt"
)

type RedisKeyStruct struct{}

func NewRedisKeyStruct() *RedisKeyStruct {
	return &RedisKeyStruct{}
}

// BlockedSessionKey returns the key marking a session blocked for suspicious
// activity.
func (r *RedisKeyStruct) BlockedSessionKey(sessionID string) string {
	return fmt.Sprintf("blocked:%s", sessionID)
}

// SessionDataKey returns the key holding a session's last submission metadata.
func (r *RedisKeyStruct) SessionDataKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// RateLimitKey returns the sliding-window rate limit key for an identifier.
func (r *RedisKeyStruct) RateLimitKey(identifier string) string {
	return fmt.Sprintf("ratelimit:%s", identifier)
}

var RedisKey = NewRedisKeyStruct()
