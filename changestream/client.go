// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changestream

import (
	"context"
	"net/url"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
)

var logger = loggo.GetLogger("kubemirror.changestream")

// Client opens change streams against a control plane.
type Client struct {
	config *rest.Config
	rest   rest.Interface
}

// NewClient returns a client using the supplied connection config. The
// config is copied; later changes to it have no effect.
func NewClient(config *rest.Config) (*Client, error) {
	if config == nil {
		return nil, errors.NotValidf("nil rest config")
	}
	config = rest.CopyConfig(config)

	restConfig := rest.CopyConfig(config)
	restConfig.ContentType = "application/json"
	restConfig.AcceptContentTypes = "application/json"
	restConfig.NegotiatedSerializer = scheme.Codecs.WithoutConversion()
	// Streams are long lived; a request timeout would cut them off.
	restConfig.Timeout = 0
	client, err := rest.UnversionedRESTClientFor(restConfig)
	if err != nil {
		return nil, errors.Annotate(err, "building rest client")
	}
	return &Client{
		config: config,
		rest:   client,
	}, nil
}

// WithBearerToken returns a client that authenticates with the token
// in place of the credentials of the original config.
func (c *Client) WithBearerToken(token string) (*Client, error) {
	if token == "" {
		return c, nil
	}
	config := rest.AnonymousClientConfig(c.config)
	config.BearerToken = token
	return NewClient(config)
}

// Host returns the control plane address streams are opened against.
func (c *Client) Host() string {
	return c.config.Host
}

// OpenStream opens the change stream of the collection at path, e.g.
// "/api/v1/namespaces/default/pods". The params are passed through as
// the query; the watch parameter is always set. The stream lives until
// ctx is done, the control plane ends it, or it is closed.
func (c *Client) OpenStream(ctx context.Context, p string, params url.Values) (Stream, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, errors.NotValidf("stream path %q", p)
	}
	req := c.rest.Get().AbsPath(p)
	for k, values := range params {
		if k == "watch" {
			continue
		}
		for _, v := range values {
			req = req.Param(k, v)
		}
	}
	req = req.Param("watch", "1")

	logger.Debugf("opening stream %s", req.URL())
	body, err := req.Stream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, connectionError(p, err)
	}
	return newWatchStream(ctx, p, body), nil
}

// connectionError wraps a failure to open a stream, carrying the status
// code and message of a control plane refusal.
func connectionError(p string, err error) error {
	var statusErr *apierrors.StatusError
	if !errors.As(err, &statusErr) {
		return &ConnectionError{Path: p, Err: err}
	}
	status := statusErr.Status()
	message := status.Message
	if status.Details != nil {
		// A response without a status object keeps its body as a cause.
		for _, cause := range status.Details.Causes {
			if cause.Type == metav1.CauseTypeUnexpectedServerResponse && cause.Message != "" && cause.Message != "unknown" {
				message = cause.Message
			}
		}
	}
	return &ConnectionError{
		Path:       p,
		StatusCode: int(status.Code),
		Err:        errors.New(message),
	}
}
