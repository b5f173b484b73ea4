// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/agrisense/fieldagent/internal/config"
	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/platform"
)

// newCapability selects the geolocation capability for the configured provider.
func newCapability(conf *config.Config, httpClient *http.Client, log *logger.Logger) platform.Capability {
	switch conf.Geolocation.Provider {
	case config.ProviderWiFi:
		return platform.NewWiFi(httpClient, conf.Geolocation.GeolocateEndpoint, log)
	default:
		return platform.NewGPSD(conf.Geolocation.GPSDHost, conf.Geolocation.GPSDPort, log)
	}
}
