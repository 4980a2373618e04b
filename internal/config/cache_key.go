package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionStartKey returns the cache key for a session's launch timestamp
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:started_at", sessionID)
}

// SessionAnswersKey returns the cache key for a session's autosaved answers hash
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionMarksKey returns the cache key for a session's marked-for-review flags
func (r *CacheKeyStruct) SessionMarksKey(sessionID string) string {
	return fmt.Sprintf("session:%s:marks", sessionID)
}

// SessionScrollKey returns the cache key for a session's scroll-position hash
func (r *CacheKeyStruct) SessionScrollKey(sessionID string) string {
	return fmt.Sprintf("session:%s:scroll", sessionID)
}

var CacheKey = NewCacheKeyStruct()
