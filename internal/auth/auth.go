package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ORAITApps/attachment-migrator/internal/models"
)

const tokenPath = "/services/oauth2/token"

type Credentials struct {
	Domain       string `mapstructure:"domain" yaml:"domain"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password"`
}

// Validate reports the first empty credential field.
func (c Credentials) Validate() error {
	fields := []struct{ name, value string }{
		{"domain", c.Domain},
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"username", c.Username},
		{"password", c.Password},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &CredentialError{Field: f.name}
		}
	}
	if _, err := TokenURL(c.Domain); err != nil {
		return err
	}
	return nil
}

// TokenURL derives the OAuth token endpoint from an org's domain. Any path on the
// domain is replaced, so both "https://x.my.salesforce.com" and a full token URL work.
func TokenURL(domain string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(domain))
	if err != nil {
		return "", &CredentialError{Field: "domain", Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &CredentialError{Field: "domain", Err: fmt.Errorf("%q is not an absolute URL", domain)}
	}
	u.Path = tokenPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Authenticate exchanges credentials for a session using the OAuth2 password grant.
func Authenticate(ctx context.Context, client *http.Client, creds Credentials) (models.Session, error) {
	if err := creds.Validate(); err != nil {
		return models.Session{}, err
	}
	if client == nil {
		client = http.DefaultClient
	}

	tokenURL, _ := TokenURL(creds.Domain)
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"username":      {creds.Username},
		"password":      {creds.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.Session{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return models.Session{}, &AuthenticationError{URL: tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Session{}, &AuthenticationError{URL: tokenURL, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return models.Session{}, &AuthenticationError{URL: tokenURL, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp models.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return models.Session{}, &AuthenticationError{URL: tokenURL, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	session := models.Session{
		InstanceURL: strings.TrimRight(tokenResp.InstanceURL, "/"),
		AccessToken: tokenResp.AccessToken,
	}
	if !session.Valid() {
		return models.Session{}, &AuthenticationError{
			URL:        tokenURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("response is missing access_token or instance_url"),
		}
	}

	return session, nil
}
