package config

import "github.com/jrsteele09/go-fermax-cloud/cloud"

const (
	EmailVar        = "FERMAX_EMAIL"
	PasswordVar     = "FERMAX_PASSWORD"
	OAuthBaseURLVar = "FERMAX_OAUTH_BASE_URL"
	APIBaseURLVar   = "FERMAX_API_BASE_URL"
)

type Cloud struct {
	src *source
}

var _ CloudConfig = Cloud{}

func (c Cloud) GetEmail() string {
	return c.src.get(EmailVar, "")
}

func (c Cloud) GetPassword() string {
	return c.src.get(PasswordVar, "")
}

func (c Cloud) GetOAuthBaseURL() string {
	return c.src.get(OAuthBaseURLVar, cloud.DefaultOAuthBaseURL)
}

func (c Cloud) GetAPIBaseURL() string {
	return c.src.get(APIBaseURLVar, cloud.DefaultAPIBaseURL)
}
