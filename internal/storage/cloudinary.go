package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sirupsen/logrus"
)

// CloudinaryStorage uploads through Cloudinary's unsigned upload API using
// an upload preset, the same credential model the public submission form
// uses.
type CloudinaryStorage struct {
	cloudName    string
	uploadPreset string
	httpClient   *http.Client
	logger       *logrus.Logger
}

func NewCloudinaryStorage(cloudName, uploadPreset string, logger *logrus.Logger) *CloudinaryStorage {
	return &CloudinaryStorage{
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		httpClient:   &http.Client{},
		logger:       logger,
	}
}

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int64  `json:"bytes"`
}

func (s *CloudinaryStorage) Upload(ctx context.Context, file io.Reader, filename, contentType, folder string) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := writer.WriteField("upload_preset", s.uploadPreset); err != nil {
		return nil, fmt.Errorf("failed to write upload preset: %w", err)
	}
	if folder != "" {
		if err := writer.WriteField("folder", folder); err != nil {
			return nil, fmt.Errorf("failed to write folder: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/upload", s.cloudName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploaded cloudinaryUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	return &UploadResult{
		URL:      uploaded.SecureURL,
		PublicID: uploaded.PublicID,
		Bytes:    uploaded.Bytes,
	}, nil
}

// Delete is a no-op: Cloudinary deletion needs the API secret, which the
// console does not hold. The reference is removed from the database and the
// object is left behind.
func (s *CloudinaryStorage) Delete(ctx context.Context, publicID string) error {
	s.logger.WithField("public_id", publicID).Warn("cloudinary deletion requires api secret, leaving object in place")
	return nil
}
