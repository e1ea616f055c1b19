package api

const (
	TokenTypeAccessToken  = "access_token"
	TokenTypeRefreshToken = "refresh_token"
	TokenTypeIDToken      = "id_token"

	// TokenTypeRPT marks a Requesting Party Token obtained by redeeming a
	// UMA permission ticket.
	TokenTypeRPT = "rpt"
)

// Grant type identifiers accepted at the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeUmaTicket         = "urn:ietf:params:oauth:grant-type:uma-ticket"
)

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// DeviceAuthResponse is the response from the device authorization endpoint.
// See RFC 8628, Section 3.2.
type DeviceAuthResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`         // Lifetime in seconds of the device_code and user_code
	Interval                int    `json:"interval,omitempty"` // Minimum polling interval in seconds for the device
}

// PermissionTicketResponse is returned by the UMA permission endpoint when a
// resource server registers one or more requested permissions.
type PermissionTicketResponse struct {
	Ticket string `json:"ticket"`
}

// ErrorResponse is the wire shape of a failed token request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
