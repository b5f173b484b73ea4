// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/testhelper"
)

const testBaseURL = "https://api.example.com"

func newTestClient(t *testing.T, rtFn func(req *stdhttp.Request) (*stdhttp.Response, error)) *Client {
	t.Helper()
	httpClient := http.New(logger.New(slog.LevelInfo))
	if rtFn != nil {
		httpClient.Transport = testhelper.MockRoundTripper{Fn: rtFn}
	}
	client, err := New(testBaseURL, httpClient, logger.New(slog.LevelInfo))
	if err != nil {
		t.Fatalf("failed to create API client: %s", err)
	}
	return client
}

func jsonResponse(body string) func(req *stdhttp.Request) (*stdhttp.Response, error) {
	return func(req *stdhttp.Request) (*stdhttp.Response, error) {
		return &stdhttp.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(stdhttp.Header),
		}, nil
	}
}

func TestNew(t *testing.T) {
	t.Run("new client succeeds", func(t *testing.T) {
		client := newTestClient(t, nil)
		if client == nil {
			t.Fatal("expected client to be non-nil")
		}
	})
	t.Run("new client without http client fails", func(t *testing.T) {
		if _, err := New(testBaseURL, nil, logger.New(slog.LevelInfo)); err == nil {
			t.Fatal("expected client creation to fail")
		}
	})
	t.Run("new client without base URL fails", func(t *testing.T) {
		if _, err := New("", http.New(logger.New(slog.LevelInfo)), logger.New(slog.LevelInfo)); err == nil {
			t.Fatal("expected client creation to fail")
		}
	})
}

func TestClient_UpdateLocation(t *testing.T) {
	t.Run("successful update returns the persisted location", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if !strings.HasSuffix(req.URL.Path, "/api/v1/update-location") {
				t.Errorf("expected update-location path, got %s", req.URL.Path)
			}
			if req.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("expected bearer token header, got %q", req.Header.Get("Authorization"))
			}
			var payload struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode request payload: %s", err)
			}
			if payload.Latitude != 12.9 || payload.Longitude != 77.6 {
				t.Errorf("expected payload (12.9, 77.6), got (%f, %f)", payload.Latitude, payload.Longitude)
			}
			return jsonResponse(`{"success":true,"message":"Location updated successfully",` +
				`"location":{"latitude":12.9,"longitude":77.6,"updated_at":"2026-08-24T10:00:00"}}`)(req)
		}

		client := newTestClient(t, rtFn)
		client.SetAuthToken("test-token")
		resp, err := client.UpdateLocation(t.Context(), 12.9, 77.6)
		if err != nil {
			t.Fatalf("failed to update location: %s", err)
		}
		if !resp.Success {
			t.Error("expected update to report success")
		}
		if resp.Location.Latitude != 12.9 {
			t.Errorf("expected persisted latitude 12.9, got %f", resp.Location.Latitude)
		}
	})
	t.Run("remote business failure is reported verbatim", func(t *testing.T) {
		client := newTestClient(t, jsonResponse(`{"success":false,"error":"Invalid coordinates"}`))
		resp, err := client.UpdateLocation(t.Context(), 12.9, 77.6)
		if err != nil {
			t.Fatalf("failed to update location: %s", err)
		}
		if resp.Success {
			t.Error("expected update to report failure")
		}
		if resp.Error != "Invalid coordinates" {
			t.Errorf("expected remote error to be reported verbatim, got %q", resp.Error)
		}
	})
	t.Run("invalid coordinates fail without a remote call", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			called = true
			return nil, errors.New("should not be called")
		})
		_, err := client.UpdateLocation(t.Context(), 91, 0)
		if err == nil {
			t.Fatal("expected update to fail")
		}
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected error to be %s, got %s", ErrInvalidCoordinates, err)
		}
		if called {
			t.Error("expected no remote call for invalid coordinates")
		}
	})
	t.Run("transport failure is wrapped", func(t *testing.T) {
		client := newTestClient(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		})
		if _, err := client.UpdateLocation(t.Context(), 12.9, 77.6); err == nil {
			t.Fatal("expected update to fail")
		}
	})
}

func TestClient_AnalyzeSoilReport(t *testing.T) {
	t.Run("successful analysis returns soil data and recommendations", func(t *testing.T) {
		body := `{"success":true,"data":{"id":7,"extracted_text":"pH 6.5 N 280",` +
			`"soil_data":{"ph":6.5,"nitrogen":"280 kg/ha"},` +
			`"recommendations":"Apply compost before sowing.","timestamp":"2026-08-24T10:00:00"}}`
		client := newTestClient(t, jsonResponse(body))
		resp, err := client.AnalyzeSoilReport(t.Context(), "aGVsbG8=")
		if err != nil {
			t.Fatalf("failed to analyze soil report: %s", err)
		}
		if !resp.Success {
			t.Error("expected analysis to report success")
		}
		if resp.Data == nil {
			t.Fatal("expected analysis data to be present")
		}
		if resp.Data.Recommendations != "Apply compost before sowing." {
			t.Errorf("unexpected recommendations: %q", resp.Data.Recommendations)
		}
		if resp.Data.SoilData["ph"] != 6.5 {
			t.Errorf("expected soil pH 6.5, got %v", resp.Data.SoilData["ph"])
		}
	})
	t.Run("empty image fails without a remote call", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			called = true
			return nil, errors.New("should not be called")
		})
		if _, err := client.AnalyzeSoilReport(t.Context(), ""); err == nil {
			t.Fatal("expected analysis to fail")
		}
		if called {
			t.Error("expected no remote call for an empty image")
		}
	})
	t.Run("remote failure is reported in the envelope", func(t *testing.T) {
		client := newTestClient(t, jsonResponse(`{"success":false,"error":"Failed to analyze soil report"}`))
		resp, err := client.AnalyzeSoilReport(t.Context(), "aGVsbG8=")
		if err != nil {
			t.Fatalf("failed to analyze soil report: %s", err)
		}
		if resp.Success {
			t.Error("expected analysis to report failure")
		}
	})
}

func TestClient_AnalyzeImage(t *testing.T) {
	t.Run("default analysis type is crop_health", func(t *testing.T) {
		client := newTestClient(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			var payload struct {
				Image        string `json:"image"`
				AnalysisType string `json:"analysis_type"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode request payload: %s", err)
			}
			if payload.AnalysisType != "crop_health" {
				t.Errorf("expected analysis type crop_health, got %s", payload.AnalysisType)
			}
			return jsonResponse(`{"success":true,"data":{"id":1,"analysis_type":"crop_health",` +
				`"analysis":{"confidence_level":8},"timestamp":"2026-08-24T10:00:00"}}`)(req)
		})
		resp, err := client.AnalyzeImage(t.Context(), "aGVsbG8=", "")
		if err != nil {
			t.Fatalf("failed to analyze image: %s", err)
		}
		if !resp.Success || resp.Data == nil {
			t.Fatal("expected successful analysis with data")
		}
	})
}

func TestClient_WeatherSuggestion(t *testing.T) {
	t.Run("missing server-side location is reported in the envelope", func(t *testing.T) {
		body := `{"success":false,"error":"Location not set. Please update your location first."}`
		client := newTestClient(t, jsonResponse(body))
		resp, err := client.WeatherSuggestion(t.Context())
		if err != nil {
			t.Fatalf("failed to fetch weather suggestion: %s", err)
		}
		if resp.Success {
			t.Error("expected suggestion to report failure")
		}
		if !strings.Contains(resp.Error, "Location not set") {
			t.Errorf("expected location-not-set error, got %q", resp.Error)
		}
	})
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t, jsonResponse(`{"status":"healthy","timestamp":"2026-08-24T10:00:00","version":"1.0.0"}`))
	resp, err := client.Health(t.Context())
	if err != nil {
		t.Fatalf("failed to check health: %s", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
}
