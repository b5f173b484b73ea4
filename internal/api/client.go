// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package api provides the client for the remote farming-assistant persistence API.
// All endpoints respond with a {success, data?, error?} JSON envelope.
package api

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/platform"
)

const (
	updateLocationPath    = "/api/v1/update-location"
	soilReportPath        = "/api/v1/soil-report"
	analyzeImagePath      = "/api/v1/analyze-image"
	weatherSuggestionPath = "/api/v1/weather-suggestion"
	healthPath            = "/api/v1/health"
)

var ErrInvalidCoordinates = fmt.Errorf("invalid coordinates")

// Client is the remote persistence API client. The auth token must be primed via
// SetAuthToken before authenticated calls.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger

	tokenMu   sync.RWMutex
	authToken string
}

// UpdateLocationResponse is the response envelope of the update-location endpoint.
type UpdateLocationResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		UpdatedAt string  `json:"updated_at"`
	} `json:"location,omitempty"`
}

// SoilReportData holds the analysis result of a soil-report image.
type SoilReportData struct {
	ID              int64          `json:"id"`
	ExtractedText   string         `json:"extracted_text"`
	SoilData        map[string]any `json:"soil_data"`
	Recommendations string         `json:"recommendations"`
	Timestamp       string         `json:"timestamp"`
}

// SoilReportResponse is the response envelope of the soil-report endpoint.
type SoilReportResponse struct {
	Success bool            `json:"success"`
	Data    *SoilReportData `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ImageAnalysisData holds the analysis result of a crop image.
type ImageAnalysisData struct {
	ID           int64          `json:"id"`
	AnalysisType string         `json:"analysis_type"`
	Analysis     map[string]any `json:"analysis"`
	Timestamp    string         `json:"timestamp"`
}

// ImageAnalysisResponse is the response envelope of the analyze-image endpoint.
type ImageAnalysisResponse struct {
	Success bool               `json:"success"`
	Data    *ImageAnalysisData `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// WeatherSuggestionResponse is the response envelope of the weather-suggestion endpoint.
type WeatherSuggestionResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// HealthResponse is the response of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// New returns a new API client for the given base URL.
func New(baseURL string, httpClient *http.Client, log *logger.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  log,
	}, nil
}

// SetAuthToken primes the client with the bearer token used for authenticated calls.
func (c *Client) SetAuthToken(token string) {
	c.tokenMu.Lock()
	c.authToken = token
	c.tokenMu.Unlock()
}

// UpdateLocation persists the given coordinates on the remote API. Coordinates are
// validated locally before the endpoint is contacted, mirroring the server's checks.
func (c *Client) UpdateLocation(ctx context.Context, lat, lon float64) (*UpdateLocationResponse, error) {
	coord := platform.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return nil, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, lat, lon)
	}

	payload := struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}{Latitude: lat, Longitude: lon}

	result := new(UpdateLocationResponse)
	if _, err := c.http.PostJSON(ctx, c.baseURL+updateLocationPath, result, payload, c.headers()); err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return result, nil
}

// AnalyzeSoilReport submits a base64-encoded soil-report image for analysis.
func (c *Client) AnalyzeSoilReport(ctx context.Context, imageBase64 string) (*SoilReportResponse, error) {
	if imageBase64 == "" {
		return nil, fmt.Errorf("soil report image is required")
	}

	payload := struct {
		Image string `json:"image"`
	}{Image: imageBase64}

	result := new(SoilReportResponse)
	if _, err := c.http.PostJSON(ctx, c.baseURL+soilReportPath, result, payload, c.headers()); err != nil {
		return nil, fmt.Errorf("failed to analyze soil report: %w", err)
	}
	return result, nil
}

// AnalyzeImage submits a base64-encoded crop image for analysis.
func (c *Client) AnalyzeImage(ctx context.Context, imageBase64, analysisType string) (*ImageAnalysisResponse, error) {
	if imageBase64 == "" {
		return nil, fmt.Errorf("image is required")
	}
	if analysisType == "" {
		analysisType = "crop_health"
	}

	payload := struct {
		Image        string `json:"image"`
		AnalysisType string `json:"analysis_type"`
	}{Image: imageBase64, AnalysisType: analysisType}

	result := new(ImageAnalysisResponse)
	if _, err := c.http.PostJSON(ctx, c.baseURL+analyzeImagePath, result, payload, c.headers()); err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}
	return result, nil
}

// WeatherSuggestion fetches agricultural weather suggestions for the server-side
// location. Requires a previously synchronized location.
func (c *Client) WeatherSuggestion(ctx context.Context) (*WeatherSuggestionResponse, error) {
	result := new(WeatherSuggestionResponse)
	if _, err := c.http.Get(ctx, c.baseURL+weatherSuggestionPath, result, nil, c.headers()); err != nil {
		return nil, fmt.Errorf("failed to fetch weather suggestion: %w", err)
	}
	return result, nil
}

// Health checks the remote API's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	result := new(HealthResponse)
	if _, err := c.http.Get(ctx, c.baseURL+healthPath, result, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to check API health: %w", err)
	}
	return result, nil
}

// headers returns the request headers for authenticated calls.
func (c *Client) headers() map[string]string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	headers := make(map[string]string)
	if c.authToken != "" {
		headers["Authorization"] = "Bearer " + c.authToken
	}
	return headers
}
