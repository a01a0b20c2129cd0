// Package client is a simple client for json requests/responses over http,
// over the daemon's unix socket or a tcp address.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/dnr/segstore/common"
)

type Client struct {
	cli *http.Client
}

// New returns a client for addr: a unix socket path if it contains a "/",
// otherwise a tcp host:port.
func New(addr string) *Client {
	network := "tcp"
	if strings.Contains(addr, "/") {
		network = "unix"
	}
	cli := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
	return &Client{cli: cli}
}

// Call posts req to path and decodes the response into res. Interrupted
// responses (a cancelled lock wait on the daemon side) are retried a few
// times before giving up; every other error kind is definitive.
func (c *Client) Call(ctx context.Context, path string, req, res any) error {
	u := &url.URL{
		Scheme: "http",
		Host:   "_",
		Path:   path,
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error { return c.call(ctx, u.String(), buf, res) },
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if se, ok := err.(common.StatusError); ok {
				return se.IsInterrupted()
			}
			return !common.IsContextError(err)
		}),
	)
}

func (c *Client) call(ctx context.Context, url string, body []byte, res any) error {
	hReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	hReq.Header.Set("Content-Type", "application/json")
	hRes, err := c.cli.Do(hReq)
	if err != nil {
		return err
	}
	defer hRes.Body.Close()
	if hRes.StatusCode != http.StatusOK {
		var st struct{ Error string }
		_ = json.NewDecoder(hRes.Body).Decode(&st)
		return common.NewStatusError(hRes.StatusCode, st.Error)
	}
	if res == nil {
		return nil
	}
	return json.NewDecoder(hRes.Body).Decode(res)
}

// CallAndPrint makes a call and dumps the response to stdout, for the cli.
func (c *Client) CallAndPrint(ctx context.Context, path string, req any) error {
	var res any
	if err := c.Call(ctx, path, req, &res); err != nil {
		fmt.Println("call error:", err)
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}
