package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	requireReady, _ := strconv.ParseBool(os.Getenv("EDGERANDOM_HEALTHCHECK_REQUIRE_READY"))
	os.Exit(check(normalizeAddr(os.Getenv("EDGERANDOM_LISTEN_ADDR")), requireReady))
}

// check returns 0 when the health endpoint answers 200. With requireReady it
// also demands that bootstrap has finished, so a container is only marked
// healthy once fetches can succeed.
func check(addr string, requireReady bool) int {
	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}
	if !requireReady {
		return 0
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil || gjson.GetBytes(body, "status").String() != "ok" {
		return 1
	}
	return 0
}

// normalizeAddr dials loopback when the server binds every interface; the
// healthcheck runs in the same container as the server.
func normalizeAddr(raw string) string {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
