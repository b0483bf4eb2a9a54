package auth

import (
	"net/url"
	"strings"
)

// ResponseMode selects how the authorization response is delivered to the
// redirect URI.
type ResponseMode string

const (
	// ResponseModeQuery returns parameters in the query string.
	ResponseModeQuery ResponseMode = "query"
	// ResponseModeFragment returns parameters in the URL fragment.
	ResponseModeFragment ResponseMode = "fragment"
	// ResponseModeFormPost returns parameters via an HTML form POST.
	ResponseModeFormPost ResponseMode = "form_post"
)

// Prompt controls the sign-in experience the authority presents.
type Prompt string

const (
	// PromptNone fails rather than show UI.
	PromptNone Prompt = "none"
	// PromptLogin forces fresh credentials.
	PromptLogin Prompt = "login"
	// PromptConsent forces the consent dialog.
	PromptConsent Prompt = "consent"
	// PromptSelectAccount shows the account picker.
	PromptSelectAccount Prompt = "select_account"
)

// AuthorizationRequest describes an interactive authorization redirect.
type AuthorizationRequest struct {
	// ClientID is the application (client) id. Required.
	ClientID string

	// RedirectURI receives the authorization response. Required.
	RedirectURI string

	// Scopes are the scopes to request, space-joined on the wire.
	Scopes []string

	// ResponseType defaults to "code".
	ResponseType string

	// ResponseMode defaults to ResponseModeQuery.
	ResponseMode ResponseMode

	// State is echoed back in the response for CSRF protection.
	State string

	// Nonce binds a returned id token to this request.
	Nonce string

	// Prompt optionally forces a sign-in experience.
	Prompt Prompt

	// ProofKey attaches a PKCE challenge when non-nil.
	ProofKey *ProofKey

	// Extra is appended verbatim to the query.
	Extra url.Values
}

// BuildAuthorizationURL renders the authorization endpoint URL for req.
// It fails with KindInvalidRequest when the client id or redirect URI is
// missing.
func (a Authority) BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.ClientID == "" {
		return "", &Error{Kind: KindInvalidRequest, Description: "client_id is required"}
	}
	if req.RedirectURI == "" {
		return "", &Error{Kind: KindInvalidRequest, Description: "redirect_uri is required"}
	}

	responseType := req.ResponseType
	if responseType == "" {
		responseType = "code"
	}
	mode := req.ResponseMode
	if mode == "" {
		mode = ResponseModeQuery
	}

	params := url.Values{
		"client_id":     {req.ClientID},
		"response_type": {responseType},
		"redirect_uri":  {req.RedirectURI},
		"response_mode": {string(mode)},
	}
	if len(req.Scopes) > 0 {
		params.Set("scope", strings.Join(req.Scopes, " "))
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	if req.Nonce != "" {
		params.Set("nonce", req.Nonce)
	}
	if req.Prompt != "" {
		params.Set("prompt", string(req.Prompt))
	}
	if req.ProofKey != nil {
		if req.ProofKey.Verifier == "" || req.ProofKey.Challenge == "" {
			return "", &Error{Kind: KindInvalidRequest, Description: "PKCE requested without a code verifier"}
		}
		params.Set("code_challenge", req.ProofKey.Challenge)
		params.Set("code_challenge_method", ChallengeMethod)
	}
	for k, vals := range req.Extra {
		for _, v := range vals {
			params.Add(k, v)
		}
	}

	return a.AuthorizeURL() + "?" + params.Encode(), nil
}

// AuthorizationResponse holds the parameters the authority delivered to the
// redirect URI.
type AuthorizationResponse struct {
	Code             string
	State            string
	IDToken          string
	Error            string
	ErrorDescription string
}

// Failed reports whether the authority returned an error instead of a code.
func (r *AuthorizationResponse) Failed() bool {
	return r.Error != ""
}

// ParseAuthorizationResponse extracts the authorization response from a
// redirect URL. Both query and fragment delivery are handled.
func ParseAuthorizationResponse(redirect string) (*AuthorizationResponse, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Description: "parse redirect: " + err.Error(), Err: err}
	}

	params := u.Query()
	if params.Get("code") == "" && params.Get("error") == "" && u.Fragment != "" {
		frag, ferr := url.ParseQuery(u.Fragment)
		if ferr == nil {
			params = frag
		}
	}
	return authorizationResponseFromValues(params), nil
}

// ParseAuthorizationForm extracts the authorization response from form_post
// body values.
func ParseAuthorizationForm(form url.Values) *AuthorizationResponse {
	return authorizationResponseFromValues(form)
}

func authorizationResponseFromValues(v url.Values) *AuthorizationResponse {
	return &AuthorizationResponse{
		Code:             v.Get("code"),
		State:            v.Get("state"),
		IDToken:          v.Get("id_token"),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
	}
}
