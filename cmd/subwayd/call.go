package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raskyld/subway"
	"github.com/raskyld/subway/internal/admin"
	"github.com/urfave/cli/v2"
)

func callCommand() *cli.Command {
	return &cli.Command{
		Name:  "call",
		Usage: "issue a request from a running node through its admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "admin",
				Usage:   "base URL of the admin API of the issuing node",
				Value:   "http://127.0.0.1:7002",
				EnvVars: []string{"SUBWAY_ADMIN"},
			},
			&cli.StringFlag{Name: "host", Usage: "destination node id"},
			&cli.StringFlag{Name: "route", Usage: "dotted route, such as a.b.c"},
			&cli.StringFlag{Name: "query", Usage: "JSON document selecting the destination among the neighbours"},
			&cli.StringFlag{Name: "expr", Usage: "boolean expression selecting the destination among the neighbours"},
			&cli.StringFlag{Name: "method", Value: subway.MethodGet},
			&cli.StringFlag{Name: "path", Usage: "pathname of the request", Required: true},
			&cli.StringFlag{Name: "body", Usage: "JSON body of the request"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second},
		},
		Action: func(c *cli.Context) error {
			in, err := callRequest(c)
			if err != nil {
				return err
			}
			out, err := postCall(c.String("admin"), in, c.Duration("timeout"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(out))
			return err
		},
	}
}

func callRequest(c *cli.Context) (*admin.CallRequest, error) {
	in := &admin.CallRequest{
		Host:     c.String("host"),
		Route:    c.String("route"),
		Expr:     c.String("expr"),
		Method:   c.String("method"),
		Pathname: c.String("path"),
		Timeout:  c.Duration("timeout").String(),
	}
	if query := c.String("query"); query != "" {
		if err := json.Unmarshal([]byte(query), &in.Query); err != nil {
			return nil, fmt.Errorf("--query: %w", err)
		}
	}
	if body := c.String("body"); body != "" {
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("--body is not valid JSON")
		}
		in.Body = json.RawMessage(body)
	}
	return in, nil
}

func postCall(base string, in *admin.CallRequest, timeout time.Duration) ([]byte, error) {
	buf, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout + 5*time.Second}
	res, err := client.Post(strings.TrimSuffix(base, "/")+"/call", "application/json", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call failed with %s: %s", res.Status, bytes.TrimSpace(out))
	}
	return out, nil
}
