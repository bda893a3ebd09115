// Package client is the HTTP client side of the berth API, used by
// berthctl and anything else that drives a remote daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/api"
	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/deploy"
	bertherr "github.com/berth-deploy/berth/pkg/errors"
	"github.com/berth-deploy/berth/pkg/event"
	transport "github.com/berth-deploy/berth/pkg/http"
)

type Token string

func (t Token) Set(req *http.Request) {
	if string(t) != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Scope-Probe token=%s", t))
	}
}

type Client struct {
	client   *http.Client
	token    Token
	router   *mux.Router
	endpoint string
}

var _ api.Server = &Client{}

func New(c *http.Client, router *mux.Router, endpoint string, t Token) *Client {
	return &Client{
		client:   c,
		token:    t,
		router:   router,
		endpoint: endpoint,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, nil, transport.Ping)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.Get(ctx, &v, transport.Version)
	return v, err
}

func (c *Client) NotifyEvent(ctx context.Context, ev event.Event) ([]deploy.Deployment, error) {
	var created []deploy.Deployment
	err := c.methodWithResp(ctx, "POST", &created, transport.Notify, ev)
	return created, err
}

func (c *Client) Deploy(ctx context.Context, req api.DeployRequest) (deploy.Deployment, error) {
	var dep deploy.Deployment
	err := c.methodWithResp(ctx, "POST", &dep, transport.Deploy, req)
	return dep, err
}

func (c *Client) DeploymentStatus(ctx context.Context, id string) (deploy.Deployment, error) {
	var dep deploy.Deployment
	err := c.Get(ctx, &dep, transport.DeploymentStatus, "id", id)
	return dep, err
}

func (c *Client) ListDeployments(ctx context.Context, serviceID string) ([]deploy.Deployment, error) {
	var res []deploy.Deployment
	err := c.Get(ctx, &res, transport.ListDeployments, "service", serviceID)
	return res, err
}

func (c *Client) ListServices(ctx context.Context) ([]deploy.Service, error) {
	var res []deploy.Service
	err := c.Get(ctx, &res, transport.ListServices)
	return res, err
}

func (c *Client) CleanupService(ctx context.Context, serviceID string) (cleanup.Result, error) {
	var res cleanup.Result
	err := c.methodWithResp(ctx, "POST", &res, transport.CleanupService, nil, "service", serviceID)
	return res, err
}

func (c *Client) PreviewCleanup(ctx context.Context, serviceID string) (cleanup.Preview, error) {
	var res cleanup.Preview
	err := c.Get(ctx, &res, transport.CleanupPreview, "service", serviceID)
	return res, err
}

func (c *Client) CleanupAll(ctx context.Context) ([]cleanup.Result, error) {
	var res []cleanup.Result
	err := c.methodWithResp(ctx, "POST", &res, transport.CleanupAll, nil)
	return res, err
}

// --- Request helpers

// methodWithResp handles body and query-param encoding, as well as
// decoding the response into the provided destination. Note, the
// response will only be decoded into the dest if the len is > 0.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route string, body interface{}, queryParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	c.token.Set(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	if len(respBytes) <= 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, &dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}

// Get executes a get request against the berth server. It unmarshals
// the response into dest, if not nil.
func (c *Client) Get(ctx context.Context, dest interface{}, route string, queryParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	c.token.Set(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	case http.StatusUnauthorized:
		return resp, transport.ErrorUnauthorized
	default:
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return resp, errors.Wrap(err, "reading response body of error")
		}
		// Use the content type to discriminate between `bertherr.Error`,
		// and the previous "any old error"
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError bertherr.Error
			if err := json.Unmarshal(body, &niceError); err != nil {
				return resp, errors.Wrap(err, "decoding response body of error")
			}
			// just in case it's JSON but not one of our own errors
			if niceError.Err != nil {
				return resp, &niceError
			}
			// fallthrough
		}
		return resp, errors.New(resp.Status + " " + string(body))
	}
}
