package models

// Session is the persisted sign-in state restored on start.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}
