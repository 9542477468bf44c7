package auth

import "context"

// LoginTestChecker maps tokens to user ids, used in handler tests.
type LoginTestChecker struct {
	LoggedSessions map[string]int
}

func NewLoginTestChecker() *LoginTestChecker {
	return &LoginTestChecker{
		LoggedSessions: map[string]int{},
	}
}

func (c *LoginTestChecker) IsLogged(_ context.Context, token string) (int, bool, error) {
	userID, ok := c.LoggedSessions[token]
	if !ok {
		return 0, false, nil
	}
	return userID, true, nil
}
