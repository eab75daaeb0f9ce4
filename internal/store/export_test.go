package store

// SetNoUserCheck replaces the comparison run for unknown logins and returns
// a func restoring it.
func SetNoUserCheck(f func(password string) error) func() {
	prev := noUser
	noUser = f
	return func() { noUser = prev }
}
