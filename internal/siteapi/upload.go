package siteapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"
)

// PhotoUpload is a single file upload with its classification and report.
type PhotoUpload struct {
	SiteID         string
	FileName       string
	ContentType    string
	Body           io.Reader
	Classification Classification
	ReportID       string
	Description    string
	TakenAt        *time.Time
}

// UploadPhoto uploads one photo as multipart/form-data and returns the created record.
func (c *Client) UploadPhoto(ctx context.Context, u PhotoUpload) (*Photo, error) {
	if u.SiteID == "" {
		return nil, errors.New("site ID is required")
	}
	if u.Body == nil {
		return nil, errors.New("upload body is required")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := addFileToMultipart(writer, u); err != nil {
		return nil, err
	}

	fields := []struct{ name, value string }{
		{"classification", string(u.Classification)},
		{"report_id", u.ReportID},
		{"description", u.Description},
	}
	if u.TakenAt != nil {
		fields = append(fields, struct{ name, value string }{"taken_at", u.TakenAt.Format(time.RFC3339)})
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("could not write field %s: %w", f.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}

	result, err := do[Photo](ctx, c, http.MethodPost, []string{"sites", u.SiteID, "photos"}, nil, &body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	photo := result.Data
	photo.Normalize()
	return &photo, nil
}

// addFileToMultipart writes the file part, keeping the caller's content type.
func addFileToMultipart(writer *multipart.Writer, u PhotoUpload) error {
	fileName := filepath.Base(u.FileName)
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("could not create form file: %w", err)
	}

	if _, err := io.Copy(part, u.Body); err != nil {
		return fmt.Errorf("could not copy file data: %w", err)
	}
	return nil
}
