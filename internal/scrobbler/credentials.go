package scrobbler

import "strings"

// Credentials are the sign-in credentials for one letterboxd account.
type Credentials struct {
	Username string
	Password string
}

// CredentialSource yields letterboxd credentials for a media-server
// account. A miss is a value, not an error: implementations return
// ok=false when nothing is configured for the account.
type CredentialSource interface {
	Lookup(account string) (Credentials, bool)
}

// StaticCredentials serves per-account credentials from configuration,
// with an optional default used for any unlisted account.
type StaticCredentials struct {
	accounts map[string]Credentials
	def      Credentials
}

// NewStaticCredentials builds a source from credentials keyed by
// media-server account name, matched case-insensitively.
func NewStaticCredentials(accounts map[string]Credentials, def Credentials) StaticCredentials {
	normalized := make(map[string]Credentials, len(accounts))
	for name, creds := range accounts {
		normalized[strings.ToLower(name)] = creds
	}
	return StaticCredentials{accounts: normalized, def: def}
}

// Lookup implements CredentialSource.
func (s StaticCredentials) Lookup(account string) (Credentials, bool) {
	if creds, ok := s.accounts[strings.ToLower(account)]; ok && creds.Username != "" {
		return creds, true
	}
	if s.def.Username != "" {
		return s.def, true
	}
	return Credentials{}, false
}
