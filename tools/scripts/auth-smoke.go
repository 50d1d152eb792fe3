// Package main provides a CI-friendly HTTP smoke test for a running
// secure-auth server.
//
// It validates:
//   - signup sets the session cookies and returns a token
//   - profile accepts the cookie and the bearer header
//   - logout clears the cookies and profile then answers 401
//   - login with a wrong password is rejected
//   - sendotp/verifyotp round trip (only when the server echoes codes)
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type smokeClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	OTP     string `json:"otp"`
	User    *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080/api/v1", "API base URL including the route prefix")
		password = flag.String("password", "smoke-test-password", "Password for the throwaway account")
		otpFlow  = flag.Bool("otp", false, "Exercise sendotp/verifyotp (server must run with SECUREAUTH_OTP_ECHO_CODE=true)")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookie jar: %v", err)
	}
	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Jar: jar},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	email := "smoke+" + uuid.NewString() + "@example.com"

	signup := c.mustCall(root, http.MethodPost, "/signup", map[string]string{
		"name":     "Smoke Test",
		"email":    email,
		"password": *password,
	}, "", http.StatusCreated)
	if signup.Token == "" || signup.User == nil || signup.User.ID == "" {
		fatalf("signup: missing token or user: %+v", signup)
	}
	c.mustHaveCookie("jwt")

	c.mustCall(root, http.MethodGet, "/profile", nil, "", http.StatusOK)

	c.mustCall(root, http.MethodPost, "/logout", nil, "", http.StatusOK)
	if c.cookie("jwt") != "" {
		fatalf("logout: jwt cookie still present")
	}
	rejected := c.mustCall(root, http.MethodGet, "/profile", nil, "", http.StatusUnauthorized)
	if rejected.Error == nil || rejected.Error.Code != "no_credential" {
		fatalf("profile after logout: unexpected error %+v", rejected.Error)
	}

	c.mustCall(root, http.MethodGet, "/profile", nil, signup.Token, http.StatusOK)

	c.mustCall(root, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": *password + "-wrong",
	}, "", http.StatusUnauthorized)

	login := c.mustCall(root, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": *password,
	}, "", http.StatusOK)
	if login.User == nil || login.User.ID != signup.User.ID {
		fatalf("login: user mismatch")
	}

	if *otpFlow {
		fresh := "smoke+" + uuid.NewString() + "@example.com"
		sent := c.mustCall(root, http.MethodPost, "/sendotp", map[string]string{"email": fresh}, "", http.StatusOK)
		if sent.OTP == "" {
			fatalf("sendotp: server did not echo the code")
		}
		c.mustCall(root, http.MethodPost, "/verifyotp", map[string]string{"email": fresh, "otp": sent.OTP}, "", http.StatusOK)
		c.mustCall(root, http.MethodPost, "/verifyotp", map[string]string{"email": fresh, "otp": sent.OTP}, "", http.StatusBadRequest)
	}

	fmt.Printf("OK: user_id=%s email=%s otp=%t\n", signup.User.ID, email, *otpFlow)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func (c *smokeClient) mustCall(parent context.Context, method, path string, body any, bearer string, want int) envelope {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fatalf("%s %s: encode: %v", method, path, err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode != want {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, resp.StatusCode, want, raw)
	}

	var out envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("%s %s: decode: %v", method, path, err)
	}
	if out.Success != (want < 400) {
		fatalf("%s %s: success=%t for status %d", method, path, out.Success, resp.StatusCode)
	}
	return out
}

func (c *smokeClient) cookie(name string) string {
	u, err := url.Parse(c.base)
	if err != nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *smokeClient) mustHaveCookie(name string) {
	if c.cookie(name) == "" {
		fatalf("expected %s cookie to be set", name)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
