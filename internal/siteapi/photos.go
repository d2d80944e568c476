package siteapi

import (
	"context"
	"errors"
	"net/http"
)

type photoListData struct {
	Photos []Photo `json:"photos"`
	Counts Counts  `json:"counts"`
}

// ListPhotos retrieves one page of a site's photo collection.
func (c *Client) ListPhotos(ctx context.Context, q PhotoQuery) (*PhotoPage, error) {
	if q.SiteID == "" {
		return nil, errors.New("site ID is required")
	}

	result, err := doJSON[photoListData](ctx, c, http.MethodGet, []string{"sites", q.SiteID, "photos"}, q.Values(), nil)
	if err != nil {
		return nil, err
	}

	page := &PhotoPage{
		Photos: result.Data.Photos,
		Counts: result.Data.Counts,
	}
	for i := range page.Photos {
		page.Photos[i].Normalize()
	}
	if result.Pagination != nil {
		page.Pagination = *result.Pagination
	}
	if page.Pagination.Page == 0 {
		page.Pagination.Page = max(q.Page, 1)
	}
	if page.Pagination.Limit == 0 {
		page.Pagination.Limit = q.PageSize
	}
	return page, nil
}

// UpdatePhotoClassification moves a photo to another classification.
func (c *Client) UpdatePhotoClassification(ctx context.Context, photoID string, classification Classification) error {
	if photoID == "" {
		return errors.New("photo ID is required")
	}
	body := struct {
		Classification Classification `json:"classification"`
	}{
		Classification: classification,
	}
	_, err := doJSON[Photo](ctx, c, http.MethodPatch, []string{"photos", photoID}, nil, body)
	return err
}

// DeletePhoto deletes a photo.
func (c *Client) DeletePhoto(ctx context.Context, photoID string) error {
	if photoID == "" {
		return errors.New("photo ID is required")
	}
	_, err := doJSON[struct{}](ctx, c, http.MethodDelete, []string{"photos", photoID}, nil, nil)
	return err
}
