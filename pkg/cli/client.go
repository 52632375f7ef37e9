package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// defaultCPURL is used when neither --url nor OBSERVIX_CP_URL is set.
const defaultCPURL = "http://127.0.0.1:7000"

var httpClient = &http.Client{Timeout: 10 * time.Second}

// output is where successful responses are printed. Swapped in tests.
var output io.Writer = os.Stdout

// apiError carries a non-2xx response so Execute can print the body and
// exit 2.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("control plane returned status %d: %s", e.status, e.body)
}

// request issues one HTTP call against the control plane and pretty-prints
// a JSON response body to stdout. A transport failure is returned as a plain
// error (exit 1); a non-2xx status as *apiError (exit 2).
func request(baseURL, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	printJSON(respBody)
	return nil
}

// printJSON pretty-prints a JSON body; non-JSON or empty bodies are printed
// as-is (deletes answer 204 with no body).
func printJSON(body []byte) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, trimmed, "", "  "); err != nil {
		fmt.Fprintln(output, string(trimmed))
		return
	}
	fmt.Fprintln(output, pretty.String())
}
