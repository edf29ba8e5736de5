package bot

import (
	"context"
	"strconv"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	offsetKey   = "updates_offset"
	pollTimeout = 30
)

var allowedUpdates = []string{
	"message",
	"edited_message",
	"callback_query",
	"my_chat_member",
	"chat_member",
}

// Poller long-polls getUpdates, retrying failures with exponential backoff, and
// persists the next offset after each batch so a restart resumes where it left.
type Poller struct {
	source     UpdatesSource
	offsets    OffsetStore
	processor  Processor
	newBackOff func() backoff.BackOff
}

func NewPoller(source UpdatesSource, offsets OffsetStore, processor Processor) *Poller {
	return &Poller{
		source:    source,
		offsets:   offsets,
		processor: processor,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (p *Poller) getLogEntry() *log.Entry {
	return log.WithField("component", "poller")
}

func (p *Poller) loadOffset(ctx context.Context) int {
	raw, err := p.offsets.GetKV(ctx, offsetKey)
	if err != nil {
		p.getLogEntry().WithField("error", err.Error()).Warn("cant load updates offset, starting over")
		return 0
	}
	if raw == "" {
		return 0
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		p.getLogEntry().WithField("value", raw).Warn("bad stored updates offset")
		return 0
	}
	return offset
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	entry := p.getLogEntry()
	cfg := api.NewUpdate(p.loadOffset(ctx))
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = allowedUpdates
	entry.WithField("offset", cfg.Offset).Info("polling updates")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := p.fetch(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for i := range updates {
			update := updates[i]
			if update.UpdateID < cfg.Offset {
				continue
			}
			cfg.Offset = update.UpdateID + 1
			if err := p.processor.Process(ctx, &update); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				entry.WithFields(log.Fields{"update_id": update.UpdateID, "error": err.Error()}).Error("cant process update")
			}
		}
		if len(updates) > 0 {
			if err := p.offsets.SetKV(ctx, offsetKey, strconv.Itoa(cfg.Offset)); err != nil {
				entry.WithField("error", err.Error()).Warn("cant store updates offset")
			}
		}
	}
}

func (p *Poller) fetch(ctx context.Context, cfg api.UpdateConfig) ([]api.Update, error) {
	var updates []api.Update
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		updates, err = p.source.GetUpdates(cfg)
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.getLogEntry().WithFields(log.Fields{
			"error": err.Error(),
			"retry": wait.String(),
		}).Warn("get updates failed")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(p.newBackOff(), ctx), notify); err != nil {
		return nil, errors.WithMessage(err, "get updates")
	}
	return updates, nil
}
