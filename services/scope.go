package services

import "strings"

// splitScope splits a space-delimited scope string, dropping empties.
func splitScope(scope string) []string {
	return strings.Fields(scope)
}

// joinScope renders a scope list back to its space-delimited wire form.
func joinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// containsScope reports whether the scope list contains the given scope.
func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
