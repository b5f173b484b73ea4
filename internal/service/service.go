// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package service runs the field agent: periodic location updates, the soil report
// watcher and the runtime language toggle.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/humanize"
	hiLocale "github.com/vorlif/humanize/locale/hi"
	knLocale "github.com/vorlif/humanize/locale/kn"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"

	"github.com/agrisense/fieldagent/internal/api"
	"github.com/agrisense/fieldagent/internal/config"
	"github.com/agrisense/fieldagent/internal/geostate"
	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/langstore"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/notify"
	"github.com/agrisense/fieldagent/internal/platform"
)

const (
	statusInterval  = time.Minute
	weatherInterval = 6 * time.Hour
)

// Messages emitted by the agent service.
const (
	MsgReportAnalyzed  = "soil report analyzed"
	MsgReportFailed    = "failed to analyze soil report"
	MsgLanguageChanged = "language changed"
)

// locationTracker is the geolocation state consumed by the service.
type locationTracker interface {
	GetCurrentPosition(ctx context.Context) error
	UpdateLocationOnServer(ctx context.Context) error
	Supported() bool
	HasLocation() bool
	Snapshot() geostate.State
}

// reportAnalyzer forwards a prepared report image to the remote analysis endpoint.
type reportAnalyzer interface {
	AnalyzeSoilReport(ctx context.Context, imageBase64 string) (*api.SoilReportResponse, error)
}

// advisoryClient provides the remote health and weather advisory lookups.
type advisoryClient interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	WeatherSuggestion(ctx context.Context) (*api.WeatherSuggestionResponse, error)
}

type Service struct {
	config    *config.Config
	tracker   locationTracker
	analyzer  reportAnalyzer
	advisor   advisoryClient
	notifier  notify.Notifier
	logger    *logger.Logger
	scheduler gocron.Scheduler
	langs     langstore.Store
	humanize  *humanize.Collection

	langLock  sync.RWMutex
	language  language.Tag
	localizer *spreak.Localizer

	fixLock   sync.RWMutex
	lastFixAt time.Time
}

// New assembles the agent service from the configuration: the API client, the
// geolocation capability, the notification sinks and the geolocation tracker.
func New(conf *config.Config, log *logger.Logger, localizer *spreak.Localizer,
	lang language.Tag, langs langstore.Store,
) (*Service, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	httpClient := http.New(log)
	apiClient, err := api.New(conf.API.BaseURL, httpClient, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	if conf.API.AuthToken != "" {
		apiClient.SetAuthToken(conf.API.AuthToken)
	}

	service := &Service{
		config:    conf,
		analyzer:  apiClient,
		advisor:   apiClient,
		logger:    log,
		scheduler: scheduler,
		langs:     langs,
		language:  lang,
		localizer: localizer,
		humanize:  humanize.MustNew(humanize.WithLocale(hiLocale.New(), knLocale.New())),
	}

	sinks := []notify.Notifier{notify.NewLogNotifier(log)}
	if !conf.Notifications.DisableDesktop {
		desktop, err := notify.NewDesktopNotifier(log)
		if err != nil {
			log.Warn("desktop notifications unavailable", logger.Err(err))
		} else {
			sinks = append(sinks, desktop)
		}
	}
	service.notifier = &localizedNotifier{service: service, next: notify.NewMultiNotifier(sinks...)}

	service.tracker = geostate.New(newCapability(conf, httpClient, log), apiClient,
		service.notifier, log, geostate.Config{
			RequestOptions: platform.Options{
				HighAccuracy: !conf.Geolocation.DisableHighAccuracy,
				Timeout:      conf.Geolocation.Timeout,
				MaximumAge:   conf.Geolocation.MaximumAge,
			},
			AutoSync: !conf.Geolocation.DisableAutoSync,
		})
	return service, nil
}

// Run starts the scheduled jobs, the report watcher and the language toggle handler,
// then blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.checkHealth(ctx)

	if !s.config.Geolocation.DisableAutoUpdate {
		if err := s.createScheduledJob(ctx, s.config.Geolocation.UpdateInterval, s.updateLocation,
			"location_update_job"); err != nil {
			return err
		}
	}
	if err := s.createScheduledJob(ctx, statusInterval, s.logStatus, "agent_status_job"); err != nil {
		return err
	}
	if err := s.createScheduledJob(ctx, weatherInterval, s.logWeatherAdvisory,
		"weather_advisory_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	go s.watchReports(ctx)

	sigChan := make(chan os.Signal, 1)
	source := stdLibSignalSource{}
	source.Notify(sigChan, syscall.SIGUSR1)
	defer source.Stop(sigChan)
	go s.HandleLanguageToggleSignal(ctx, sigChan)

	// Acquire an initial fix right away instead of waiting for the first tick
	if !s.config.Geolocation.DisableAutoUpdate {
		s.updateLocation(ctx)
	}

	<-ctx.Done()
	return s.scheduler.Shutdown()
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// updateLocation acquires a fresh position fix. Sync to the remote API is handled by
// the tracker's auto-sync, failures surface through the notifier.
func (s *Service) updateLocation(ctx context.Context) {
	if err := s.tracker.GetCurrentPosition(ctx); err != nil {
		s.logger.Debug("scheduled location update failed", logger.Err(err))
		return
	}
	s.fixLock.Lock()
	s.lastFixAt = time.Now()
	s.fixLock.Unlock()
}

// logStatus periodically reports the agent's state.
func (s *Service) logStatus(context.Context) {
	s.fixLock.RLock()
	lastFix := s.lastFixAt
	s.fixLock.RUnlock()

	if !s.tracker.HasLocation() || lastFix.IsZero() {
		s.logger.Debug("agent status", slog.Bool("has_location", false),
			slog.Bool("supported", s.tracker.Supported()))
		return
	}

	s.langLock.RLock()
	humanizer := s.humanize.CreateHumanizer(s.language)
	s.langLock.RUnlock()

	state := s.tracker.Snapshot()
	s.logger.Debug("agent status",
		slog.Float64("latitude", state.Latitude.Value()),
		slog.Float64("longitude", state.Longitude.Value()),
		slog.String("last_fix", humanizer.NaturalTime(lastFix)))
}

// checkHealth probes the remote API once at startup so a misconfigured base URL
// surfaces immediately instead of on the first sync.
func (s *Service) checkHealth(ctx context.Context) {
	resp, err := s.advisor.Health(ctx)
	if err != nil {
		s.logger.Warn("remote API health check failed", logger.Err(err))
		return
	}
	s.logger.Info("remote API reachable", slog.String("status", resp.Status),
		slog.String("version", resp.Version))
}

// logWeatherAdvisory fetches agricultural weather suggestions for the synchronized
// location and surfaces them in the log. The endpoint requires a location on the
// server, so the job skips until the first fix has been acquired.
func (s *Service) logWeatherAdvisory(ctx context.Context) {
	if !s.tracker.HasLocation() {
		return
	}
	resp, err := s.advisor.WeatherSuggestion(ctx)
	if err != nil {
		s.logger.Debug("weather advisory unavailable", logger.Err(err))
		return
	}
	if !resp.Success {
		s.logger.Debug("weather advisory rejected", slog.String("reason", resp.Error))
		return
	}
	s.logger.Info("weather advisory", slog.Any("advisory", resp.Data))
}

// localize translates a message with the currently active localizer.
func (s *Service) localize(message string) string {
	s.langLock.RLock()
	defer s.langLock.RUnlock()
	if s.localizer == nil {
		return message
	}
	return s.localizer.Get(message)
}

// localizedNotifier translates every message before handing it to the sink.
type localizedNotifier struct {
	service *Service
	next    notify.Notifier
}

func (n *localizedNotifier) Success(message string) {
	n.next.Success(n.service.localize(message))
}

func (n *localizedNotifier) Error(message string) {
	n.next.Error(n.service.localize(message))
}
