// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/media"
)

// reportSettleDelay gives file transfers time to finish before the image is read.
const reportSettleDelay = 500 * time.Millisecond

// processedDirName is the subdirectory analyzed reports are archived into.
const processedDirName = "processed"

// watchReports watches the report drop directory and forwards every new image to the
// remote soil analysis endpoint.
func (s *Service) watchReports(ctx context.Context) {
	dir := s.config.Reports.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("failed to create report directory", logger.Err(err))
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("failed to create report watcher", logger.Err(err))
		return
	}
	defer func() {
		if err = watcher.Close(); err != nil {
			s.logger.Error("failed to close report watcher", logger.Err(err))
		}
	}()
	if err = watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch report directory", logger.Err(err))
		return
	}
	s.logger.Info("watching for soil reports", slog.String("directory", dir))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !media.IsImageFile(event.Name) {
				continue
			}
			time.Sleep(reportSettleDelay)
			s.processReport(ctx, event.Name)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("report watcher error", logger.Err(watchErr))
		}
	}
}

// processReport prepares the image at path and submits it for analysis. The analyzed
// image is archived under its report ID, failures leave the file in place for retry.
func (s *Service) processReport(ctx context.Context, path string) {
	encoded, err := media.ResizeToBase64(path, s.config.Reports.MaxWidth, s.config.Reports.MaxHeight,
		s.config.Reports.Quality)
	if err != nil {
		s.logger.Error("failed to prepare report image", logger.Err(err),
			slog.String("path", path))
		s.notifier.Error(MsgReportFailed)
		return
	}

	resp, err := s.analyzer.AnalyzeSoilReport(ctx, encoded)
	if err != nil {
		s.logger.Error("failed to submit soil report", logger.Err(err), slog.String("path", path))
		s.notifier.Error(MsgReportFailed)
		return
	}
	if !resp.Success {
		s.logger.Error("soil report rejected", slog.String("reason", resp.Error),
			slog.String("path", path))
		s.notifier.Error(MsgReportFailed)
		return
	}

	// Reports are archived under their server-side ID, a generated one serves as
	// fallback when the server did not assign any.
	id := uuid.NewString()
	hasRecommendations := false
	if resp.Data != nil {
		if resp.Data.ID != 0 {
			id = strconv.FormatInt(resp.Data.ID, 10)
		}
		hasRecommendations = resp.Data.Recommendations != ""
	}
	if err = s.archiveReport(path, id); err != nil {
		s.logger.Warn("failed to archive report image", logger.Err(err), slog.String("path", path))
	}

	s.logger.Info("soil report analyzed", slog.String("id", id),
		slog.Bool("has_recommendations", hasRecommendations))
	s.notifier.Success(MsgReportAnalyzed)
}

// archiveReport moves an analyzed image into the processed subdirectory, named after
// its report ID.
func (s *Service) archiveReport(path, id string) error {
	processed := filepath.Join(s.config.Reports.Dir, processedDirName)
	if err := os.MkdirAll(processed, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(processed, id+strings.ToLower(filepath.Ext(path))))
}
