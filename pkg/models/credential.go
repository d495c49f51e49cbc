package models

// CredentialRef is the dispatchable view of one pool credential, handed to
// archive clients by the rotator. The token is never logged.
type CredentialRef struct {
	ID       int
	Name     string
	Token    string
	ProxyURL string
}
