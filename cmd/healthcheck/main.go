// Package main is the container health check. It exits non-zero unless the
// server answers 200 on /livez, or on the path given as the first argument.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/garyellow/messenger-bot-go/internal/config"
)

const checkTimeout = 5 * time.Second

func main() {
	path := "/livez"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = "10000"
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	if err := check(ctx, http.DefaultClient, endpoint(port, path)); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func endpoint(port, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://localhost:" + port + path
}

func check(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	return nil
}
