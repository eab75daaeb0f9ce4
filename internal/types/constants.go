package types

const (
	ContextUserKey = "user"
	TokenCookie    = "token"
)
