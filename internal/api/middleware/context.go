package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	clientIDKey   contextKey = "client_id"
	codePrefixKey contextKey = "code_prefix"
	roleKey       contextKey = "role"
)

func SetClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// GetClientID returns the client the request acts for. Admin requests only
// carry one when impersonating.
func GetClientID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(clientIDKey).(string)
	return id, ok && id != ""
}

func setCodePrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, codePrefixKey, prefix)
}

func getCodePrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(codePrefixKey).(string)
	return prefix, ok
}

func setRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func GetRole(r *http.Request) string {
	role, _ := r.Context().Value(roleKey).(string)
	return role
}

// ExportedCodePrefixKey returns the context key for code_prefix (for testing).
func ExportedCodePrefixKey() contextKey {
	return codePrefixKey
}
