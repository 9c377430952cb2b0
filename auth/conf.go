package auth

import "golang.org/x/oauth2/clientcredentials"

// Conf holds the client-credentials settings used when the dispatch backend
// sits behind an OAuth2 gateway. An empty ClientID disables it.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Enabled reports whether bearer tokens should be requested.
func (c Conf) Enabled() bool { return c.ClientID != "" }

func (c *Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
}
