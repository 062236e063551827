package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	url2 "net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/descope/virtualwebauthn"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			endpoint,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "NORMICYTE_ADDR":
		return "localhost:0", true
	case "NORMICYTE_SQLITE_URL":
		return ":memory:", true
	default:
		return "", false
	}
}

type testServer struct {
	url           string
	client        http.Client
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
}

// startTestServer starts the test server, waits for it to be ready, and
// returns the server URL for testing.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	go func() {
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return testServer{}
	case addr := <-addrCh:
		// Swap 127.0.0.1 with localhost so the cookie domain matches the
		// webauthn relying party ID.
		port := strings.Split(addr, ":")[1]
		serverURL := fmt.Sprintf("http://localhost:%s", port)
		if err := waitForReady(ctx, fmt.Sprintf("%s/api/healthy", serverURL)); err != nil {
			require.NoError(t, err)
		}
		jar, err := newUnsafeCookieJar()
		require.NoError(t, err)
		return testServer{
			url:           serverURL,
			client:        http.Client{Jar: jar},
			rp:            virtualwebauthn.RelyingParty{Name: "NormiCyte", ID: "localhost", Origin: "http://localhost:0"},
			authenticator: virtualwebauthn.NewAuthenticator(),
		}
	}
}

// Get fetches a URL and returns the response.
func (s *testServer) Get(t *testing.T, urlPath string) *http.Response {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	return resp
}

// GetDoc fetches a URL and returns a goquery document.
func (s *testServer) GetDoc(t *testing.T, urlPath string) *goquery.Document {
	t.Helper()
	resp := s.Get(t, urlPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

// NewRequest creates a new HTTP request to the server.
func (s *testServer) NewRequest(t *testing.T, method, urlPath string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, s.url+urlPath, body)
	require.NoError(t, err)
	return req
}

// Register registers a new passkey with the server. The registration API
// paths are exempt from CSRF so no token is needed.
func (s *testServer) Register(t *testing.T) {
	t.Helper()
	// Prime the session cookie.
	resp := s.Get(t, "/")
	require.NoError(t, resp.Body.Close())

	req := s.NewRequest(t, http.MethodPost, "/api/registration/start", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	attOpts, err := virtualwebauthn.ParseAttestationOptions(string(bodyBytes))
	require.NoError(t, err)
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	attestationResponse := virtualwebauthn.CreateAttestationResponse(s.rp, s.authenticator, credential, *attOpts)
	req = s.NewRequest(t, http.MethodPost, "/api/registration/finish", strings.NewReader(attestationResponse))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.authenticator.AddCredential(credential)
	// This option is needed for making passkey login work.
	s.authenticator.Options.UserHandle = []byte(attOpts.UserID)
}

// Login logs in given there is a registered passkey.
func (s *testServer) Login(t *testing.T) {
	t.Helper()
	req := s.NewRequest(t, http.MethodPost, "/api/login/start", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	asOpts, err := virtualwebauthn.ParseAssertionOptions(string(bodyBytes))
	require.NoError(t, err)
	credential := s.authenticator.Credentials[0]
	asResp := virtualwebauthn.CreateAssertionResponse(s.rp, s.authenticator, credential, *asOpts)
	req = s.NewRequest(t, http.MethodPost, "/api/login/finish", strings.NewReader(asResp))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// PostForm submits form values with the CSRF token scraped from fromURLPath
// and returns the final response after redirects.
func (s *testServer) PostForm(t *testing.T, fromURLPath, actionURLPath string, values url2.Values) *http.Response {
	t.Helper()
	doc := s.GetDoc(t, fromURLPath)
	csrfToken, ok := doc.Find("input[name=csrf_token]").First().Attr("value")
	require.True(t, ok, "csrf_token not found on page %s", fromURLPath)

	formData := url2.Values{}
	formData.Add("csrf_token", csrfToken)
	for key, vals := range values {
		for _, val := range vals {
			formData.Add(key, val)
		}
	}

	resp, err := s.client.Post(s.url+actionURLPath, "application/x-www-form-urlencoded", strings.NewReader(formData.Encode()))
	require.NoError(t, err)
	return resp
}
