package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"cache2k25/internal/dto"
)

type Consumer interface {
	Consume(handler func([]byte) error) error
}

type Notifier interface {
	SendConfirmation(msg dto.RegistrationSavedMessage) error
}

type Reader struct {
	rmq    Consumer
	mail   Notifier
	log    *zerolog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq Consumer, mail Notifier, log *zerolog.Logger) *Reader {
	return &Reader{
		rmq:  rmq,
		mail: mail,
		log:  log,
		done: make(chan struct{}),
	}
}

// Handle processes one registration-saved message. Undecodable messages are
// rejected; mail failures are logged and the message is acknowledged.
func (r *Reader) Handle(body []byte) error {
	var msg dto.RegistrationSavedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		return err
	}

	r.log.Info().
		Str("registration_id", msg.RegistrationID).
		Str("event_id", msg.EventID).
		Msg("Received registration message")

	if r.mail == nil {
		return nil
	}
	if err := r.mail.SendConfirmation(msg); err != nil {
		r.log.Warn().
			Err(err).
			Str("registration_id", msg.RegistrationID).
			Msg("Failed to send confirmation e-mail")
	}
	return nil
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("Registration reader started")

	go func() {
		defer close(r.done)

		if err := r.rmq.Consume(r.Handle); err != nil {
			r.log.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("Registration reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
