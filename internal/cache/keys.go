package cache

import "fmt"

func RateLimitKey(codePrefix string) string {
	return fmt.Sprintf("ratelimit:%s", codePrefix)
}

// ActionListKey holds the cached List response for a client.
func ActionListKey(clientID string) string {
	return fmt.Sprintf("actions:list:%s", clientID)
}

// AnalyticsPayloadKey holds the last payload fetched from the analytics service.
func AnalyticsPayloadKey(clientID string) string {
	return fmt.Sprintf("analytics:payload:%s", clientID)
}
