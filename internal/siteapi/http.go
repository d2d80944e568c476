package siteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIError is returned for every failed backend call: a non-2xx status, a
// non-success envelope or an unreadable response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("site API error (status %d): %s", e.Status, e.Message)
}

// errorText accepts either a plain string or an object with a message field,
// since the backend uses both shapes.
type errorText string

func (e *errorText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = errorText(s)
		return nil
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshal error field: %w", err)
	}
	msg := obj.Message
	if msg == "" {
		msg = obj.Code
	}
	*e = errorText(msg)
	return nil
}

// envelope is the uniform response wrapper of the backend.
type envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      errorText   `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
}

func (e *envelope[T]) errorMessage() string {
	if e.Error != "" {
		return string(e.Error)
	}
	if e.Message != "" {
		return e.Message
	}
	return "request was not successful"
}

// doJSON performs a request with an optional JSON body and decodes the envelope.
func doJSON[T any](ctx context.Context, c *Client, method string, segments []string, query url.Values, requestBody any) (*envelope[T], error) {
	var bodyReader io.Reader
	contentType := ""
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}
	return do[T](ctx, c, method, segments, query, bodyReader, contentType)
}

// do is the internal helper every endpoint goes through. Transport errors are
// returned wrapped; everything the backend answered is normalised to *APIError.
func do[T any](ctx context.Context, c *Client, method string, segments []string, query url.Values, body io.Reader, contentType string) (*envelope[T], error) {
	endpoint := strings.Join(segments, "/")

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(query, segments...), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from validated parsedURL via resolveURL
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	c.captureResponse(endpoint, respBody)

	var result envelope[T]
	decodeErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && (result.Error != "" || result.Message != "") {
			msg = result.errorMessage()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	if resp.StatusCode == http.StatusNoContent {
		result.Success = true
		return &result, nil
	}

	if decodeErr != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: "could not unmarshal response: " + decodeErr.Error()}
	}

	if !result.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: result.errorMessage()}
	}

	return &result, nil
}
