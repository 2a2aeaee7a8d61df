package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
)

var errUsage = errors.New("missing arguments")

// client calls the kiosk REST API.
type client struct {
	base string
	http *http.Client
	raw  bool
	out  io.Writer
}

type action func(ctx context.Context, c *client, cmd *cli.Command) error

// run adapts an action to a cli.ActionFunc.
func run(fn action) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		c := &client{
			base: strings.TrimRight(cmd.String("api"), "/"),
			http: &http.Client{Timeout: 30 * time.Second},
			raw:  cmd.Bool("json"),
			out:  cmd.Root().Writer,
		}
		if c.out == nil {
			c.out = os.Stdout
		}
		if err := fn(ctx, c, cmd); err != nil {
			if errors.Is(err, errUsage) {
				return fmt.Errorf("usage: %s %s", cmd.FullName(), cmd.ArgsUsage)
			}
			return err
		}
		return nil
	}
}

// call performs a request and decodes the JSON response into result.
func (c *client) call(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s (%d)", errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if c.raw && len(data) > 0 {
		fmt.Fprintln(c.out, strings.TrimSpace(string(data)))
		return errPrinted
	}
	if result != nil && len(data) > 0 {
		return json.Unmarshal(data, result)
	}
	return nil
}

// errPrinted signals that the raw response was already written.
var errPrinted = errors.New("printed")

func done(err error) error {
	if errors.Is(err, errPrinted) {
		return nil
	}
	return err
}

func listPages(ctx context.Context, c *client, _ *cli.Command) error {
	var resp struct {
		Pages []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			URL   string `json:"url"`
		} `json:"pages"`
	}
	if err := c.call(ctx, "GET", "/api/pages", nil, &resp); err != nil {
		return done(err)
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tURL")
	for _, p := range resp.Pages {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Label, p.URL)
	}
	return w.Flush()
}

func listViews(ctx context.Context, c *client, _ *cli.Command) error {
	var resp struct {
		Views []struct {
			ID      string `json:"id"`
			State   string `json:"state"`
			Visible bool   `json:"visible"`
			URL     string `json:"url"`
		} `json:"views"`
	}
	if err := c.call(ctx, "GET", "/api/views", nil, &resp); err != nil {
		return done(err)
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tVISIBLE\tURL")
	for _, v := range resp.Views {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", v.ID, v.State, v.Visible, v.URL)
	}
	return w.Flush()
}

func viewCommand(verb string) action {
	return func(ctx context.Context, c *client, cmd *cli.Command) error {
		id := cmd.Args().First()
		if id == "" {
			return errUsage
		}
		if err := c.call(ctx, "POST", "/api/views/"+id+"/"+verb, nil, nil); err != nil {
			return done(err)
		}
		fmt.Fprintf(c.out, "%s: %s\n", id, verb)
		return nil
	}
}

func navigate(ctx context.Context, c *client, cmd *cli.Command) error {
	id, url := cmd.Args().Get(0), cmd.Args().Get(1)
	if id == "" || url == "" {
		return errUsage
	}
	return done(c.call(ctx, "POST", "/api/views/"+id+"/navigate", map[string]string{"url": url}, nil))
}

func control(direction string) action {
	return func(ctx context.Context, c *client, cmd *cli.Command) error {
		id := cmd.Args().First()
		if id == "" {
			return errUsage
		}
		return done(c.call(ctx, "POST", "/api/views/"+id+"/control", map[string]string{"action": direction}, nil))
	}
}

func currentURL(ctx context.Context, c *client, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errUsage
	}
	var resp struct {
		URL *string `json:"url"`
	}
	if err := c.call(ctx, "GET", "/api/views/"+id+"/url", nil, &resp); err != nil {
		return done(err)
	}
	if resp.URL == nil {
		fmt.Fprintln(c.out, "-")
		return nil
	}
	fmt.Fprintln(c.out, *resp.URL)
	return nil
}

func removeElements(ctx context.Context, c *client, cmd *cli.Command) error {
	id, selector := cmd.Args().Get(0), cmd.Args().Get(1)
	if id == "" || selector == "" {
		return errUsage
	}
	return done(c.call(ctx, "POST", "/api/views/"+id+"/remove-elements", map[string]string{"selector": selector}, nil))
}

func destroyAll(ctx context.Context, c *client, _ *cli.Command) error {
	return done(c.call(ctx, "DELETE", "/api/views", nil, nil))
}

type idleStatus struct {
	TimeoutMS  int64 `json:"timeout_ms"`
	Armed      bool  `json:"armed"`
	Suppressed bool  `json:"suppressed"`
}

func (s idleStatus) String() string {
	return fmt.Sprintf("timeout=%s armed=%t suppressed=%t",
		time.Duration(s.TimeoutMS)*time.Millisecond, s.Armed, s.Suppressed)
}

func idleCall(method, path string, body interface{}) action {
	return func(ctx context.Context, c *client, _ *cli.Command) error {
		var st idleStatus
		if err := c.call(ctx, method, path, body, &st); err != nil {
			return done(err)
		}
		fmt.Fprintln(c.out, st)
		return nil
	}
}

func idleTimeout(ctx context.Context, c *client, cmd *cli.Command) error {
	if cmd.Args().First() == "" {
		return errUsage
	}
	d, err := time.ParseDuration(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", cmd.Args().First(), err)
	}
	body := map[string]int64{"timeout_ms": d.Milliseconds()}
	return idleCall("PUT", "/api/idle/timeout", body)(ctx, c, cmd)
}

type kioskInfo struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

func getKiosk(ctx context.Context, c *client, _ *cli.Command) error {
	var info kioskInfo
	if err := c.call(ctx, "GET", "/api/kiosk", nil, &info); err != nil {
		return done(err)
	}
	fmt.Fprintf(c.out, "name=%s mode=%s\n", info.Name, info.Mode)
	return nil
}

func setKiosk(ctx context.Context, c *client, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errUsage
	}
	return done(c.call(ctx, "PUT", "/api/kiosk", kioskInfo{Name: name, Mode: cmd.String("mode")}, nil))
}

func deleteKiosk(ctx context.Context, c *client, _ *cli.Command) error {
	return done(c.call(ctx, "DELETE", "/api/kiosk", nil, nil))
}

func quit(ctx context.Context, c *client, _ *cli.Command) error {
	if err := c.call(ctx, "POST", "/api/quit", nil, nil); err != nil {
		return done(err)
	}
	fmt.Fprintln(c.out, "quitting")
	return nil
}
