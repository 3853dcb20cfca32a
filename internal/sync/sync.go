// Package sync periodically archives the live session as JSONL to S3 or a
// git clone.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// Destination receives each archive.
type Destination interface {
	// Name identifies the destination in logs and errors.
	Name() string
	Write(ctx context.Context, data []byte) error
}

// Exporter supplies the session to archive. session.Manager satisfies it.
type Exporter interface {
	Export() (*model.Session, error)
}

// Scheduler archives the session to its destinations on a fixed interval.
type Scheduler struct {
	src      Exporter
	dests    []Destination
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(src Exporter, dests []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{src: src, dests: dests, interval: interval, logger: logger}
}

// Start syncs once immediately and then every interval until ctx ends or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			_ = s.SyncOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sync.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// SyncOnce exports the session and writes it to every destination, even
// when some fail. The returned error joins the individual failures.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	sess, err := s.src.Export()
	if err != nil {
		s.logger.Warn("archive skipped", "err", err)
		return fmt.Errorf("export session: %w", err)
	}
	var buf bytes.Buffer
	if err := ExportJSONL(sess, &buf); err != nil {
		s.logger.Error("archive encoding failed", "session", sess.ID, "err", err)
		return err
	}

	var errs []error
	for _, d := range s.dests {
		if err := d.Write(ctx, buf.Bytes()); err != nil {
			s.logger.Error("archive write failed", "destination", d.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		}
	}
	s.logger.Info("archive synced",
		"session", sess.ID,
		"cursor", sess.CursorIndex,
		"bytes", buf.Len(),
		"failed", len(errs),
	)
	return errors.Join(errs...)
}
