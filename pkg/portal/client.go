/**
 * @description
 * Client is the HTTP core shared by the customer and employee portals. It
 * attaches the session token to every call, reports each response status
 * back to the session, and turns the backend envelope into typed results or
 * a classified *Error.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/sirupsen/logrus: Structured logging.
 */
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/pkg/domain"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Client talks to the portal API under baseURL (for example https://host/api).
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	log        *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger.WithField("component", "portal_client")
		}
	}
}

// NewClient creates a client bound to session. A nil session gets a fresh one.
func NewClient(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		session:    session,
		log:        logrus.StandardLogger().WithField("component", "portal_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

// Login exchanges credentials for a session. A rejected login leaves the
// session empty and is never retried.
func (c *Client) Login(ctx context.Context, identifier, secret string) (domain.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return domain.Identity{}, validationError(errors.New("identifier and password are required"))
	}

	generation := c.session.Generation()
	var resp domain.LoginResponse
	status, err := c.send(ctx, http.MethodPost, "auth/login", nil, jsonBody(domain.LoginRequest{Identifier: identifier, Password: secret}), false, &resp)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) && status == http.StatusUnauthorized {
			pe.Kind = KindAuthentication
		}
		return domain.Identity{}, err
	}

	identity := resp.Identity()
	if !c.session.install(generation, resp.Token, identity) {
		return domain.Identity{}, &Error{Kind: KindAuthorization, Code: "SESSION_CHANGED", Message: "session changed while signing in"}
	}
	c.log.WithFields(logrus.Fields{"user_id": identity.UserID, "role": identity.Role}).Info("signed in")
	return identity, nil
}

// Logout clears the session.
func (c *Client) Logout() {
	c.session.Logout()
}

// Gate checks the current identity against required before a protected call.
func (c *Client) Gate(required RoleSet) error {
	identity, _ := c.session.Identity()
	if d := Authorize(required, identity); !d.Allowed {
		return &Error{Kind: KindAuthorization, Code: "ACCESS_DENIED", Message: "sign in with a permitted role at " + d.Redirect}
	}
	return nil
}

type requestBody struct {
	contentType string
	reader      func() (io.Reader, error)
}

func jsonBody(v interface{}) *requestBody {
	return &requestBody{
		contentType: "application/json",
		reader: func() (io.Reader, error) {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(raw), nil
		},
	}
}

// call performs an authenticated request and decodes the envelope data into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body *requestBody, out interface{}) error {
	_, err := c.send(ctx, method, path, query, body, true, out)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body *requestBody, authenticated bool, out interface{}) (int, error) {
	endpoint := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		r, err := body.reader()
		if err != nil {
			return 0, &Error{Kind: KindValidation, Code: "ENCODING_ERROR", Message: err.Error(), Err: err}
		}
		reader = r
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}

	generation := c.session.Generation()
	if authenticated {
		generation = c.session.Attach(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Debug("request failed")
		return 0, &Error{Kind: KindTransport, Code: "TRANSPORT_ERROR", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if authenticated {
		c.session.Observe(generation, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &Error{Kind: KindTransport, Status: resp.StatusCode, Code: "TRANSPORT_ERROR", Message: err.Error(), Err: err}
	}

	var envelope domain.APIResponse[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode >= 400 {
		return resp.StatusCode, classify(resp.StatusCode, envelope, decodeErr)
	}
	if decodeErr != nil {
		return resp.StatusCode, &Error{Kind: KindTransport, Status: resp.StatusCode, Code: "DECODE_ERROR", Message: "undecodable response body", Err: decodeErr}
	}
	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, &Error{Kind: KindTransport, Status: resp.StatusCode, Code: "DECODE_ERROR", Message: "undecodable response data", Err: err}
		}
	}
	return resp.StatusCode, nil
}

// classify maps a failed response onto an error kind. Backend messages on 4xx
// are surfaced verbatim.
func classify(status int, envelope domain.APIResponse[json.RawMessage], decodeErr error) *Error {
	message := envelope.Message
	if decodeErr != nil || message == "" {
		message = http.StatusText(status)
	}
	e := &Error{Status: status, Code: envelope.ErrorCode, Message: message}
	switch {
	case status >= 500:
		e.Kind = KindTransport
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuthorization
	default:
		e.Kind = KindDomainRejection
	}
	return e
}
