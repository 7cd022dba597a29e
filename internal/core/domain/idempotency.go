package domain

// BuildIdempotencyKey scopes a client-supplied key to its account.
func BuildIdempotencyKey(username, key string) string {
	return username + ":" + key
}
