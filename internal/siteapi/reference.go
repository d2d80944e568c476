package siteapi

import (
	"context"
	"net/http"
	"net/url"
)

// ListReports retrieves the reports photos of a site can be attached to.
func (c *Client) ListReports(ctx context.Context, siteID string) ([]Report, error) {
	query := url.Values{}
	if siteID != "" {
		query.Set("site_id", siteID)
	}
	result, err := doJSON[[]Report](ctx, c, http.MethodGet, []string{"reports"}, query, nil)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// ListPhotoSheets retrieves the generated photo sheets of a site.
func (c *Client) ListPhotoSheets(ctx context.Context, siteID string) ([]PhotoSheet, error) {
	result, err := doJSON[[]PhotoSheet](ctx, c, http.MethodGet, []string{"sites", siteID, "photo-sheets"}, nil, nil)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}
