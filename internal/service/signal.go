// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"os"
	"os/signal"

	"github.com/agrisense/fieldagent/internal/i18n"
	"github.com/agrisense/fieldagent/internal/logger"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleLanguageToggleSignal cycles to the next supported language when a signal
// is received
func (s *Service) HandleLanguageToggleSignal(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			s.toggleLanguage()
		}
	}
}

// toggleLanguage switches the active localizer to the next language in the cycle and
// persists the choice.
func (s *Service) toggleLanguage() {
	s.langLock.Lock()
	next := i18n.Next(s.language)
	localizer, tag, err := i18n.New(next.String())
	if err != nil {
		s.langLock.Unlock()
		s.logger.Error("failed to switch language", logger.Err(err))
		return
	}
	s.language = tag
	s.localizer = localizer
	s.langLock.Unlock()

	if err = s.langs.Save(tag.String()); err != nil {
		s.logger.Error("failed to persist language preference", logger.Err(err))
	}
	s.notifier.Success(MsgLanguageChanged)
}
