package ontology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/httpclient"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"golang.org/x/oauth2"
)

// Credentials authenticate against a remote vocabulary service. A token is
// sent as a bearer token. User and password are exchanged for a token when
// TokenURL is set and sent as basic auth otherwise.
type Credentials struct {
	Token    string
	User     string
	Password string
	ClientID string
	TokenURL string
}

type ClientOptions struct {
	BaseURL     string
	Timeout     time.Duration
	Retries     int
	Credentials Credentials
	HTTPClient  *http.Client
}

// Client queries a REST vocabulary service:
//
//	GET {base}/{resource}/terms?q={raw}&version={version}  -> Term
//	GET {base}/{resource}/terms/{id}                        -> Term
//
// A 404 means the term is unknown.
type Client struct {
	base   *url.URL
	http   *http.Client
	basic  *Credentials
	policy httpclient.Policy
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid vocabulary base url %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpclient.New(opts.Timeout)
	}

	c := &Client{base: base, http: hc, policy: httpclient.DefaultPolicy(opts.Retries)}
	creds := opts.Credentials

	switch {
	case creds.Token != "":
		c.http = oauthClient(ctx, hc, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}))
	case creds.User != "" && creds.TokenURL != "":
		conf := &oauth2.Config{
			ClientID: creds.ClientID,
			Endpoint: oauth2.Endpoint{TokenURL: creds.TokenURL},
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, hc)
		token, err := conf.PasswordCredentialsToken(tokenCtx, creds.User, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("obtaining vocabulary token: %w", err)
		}
		c.http = oauthClient(ctx, hc, conf.TokenSource(tokenCtx, token))
	case creds.User != "":
		c.basic = &creds
	}
	return c, nil
}

func oauthClient(ctx context.Context, base *http.Client, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	client.Timeout = base.Timeout
	return client
}

func (c *Client) Resolve(ctx context.Context, resource, version, raw string) (Term, error) {
	q := url.Values{"q": {strings.TrimSpace(raw)}}
	if version != "" {
		q.Set("version", version)
	}
	return c.get(ctx, c.endpoint(resource, "terms")+"?"+q.Encode())
}

func (c *Client) Contains(ctx context.Context, resource, id string) (bool, error) {
	_, err := c.get(ctx, c.endpoint(resource, "terms", strings.TrimSpace(id)))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) get(ctx context.Context, target string) (Term, error) {
	var term Term
	err := httpclient.Retry(ctx, c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.basic != nil {
			req.SetBasicAuth(c.basic.User, c.basic.Password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode != http.StatusOK:
			_, _ = io.Copy(io.Discard, resp.Body)
			return &httpclient.StatusError{URL: target, StatusCode: resp.StatusCode}
		}
		return json.NewDecoder(resp.Body).Decode(&term)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Log.WithError(err).WithField("url", target).Warn("vocabulary lookup failed")
		}
		return Term{}, err
	}
	if term.ID == "" {
		return Term{}, ErrNotFound
	}
	return term, nil
}
