package modern

import (
	"time"

	"go.uber.org/zap"
)

// ExchangeEvent describes one command/reply exchange.
type ExchangeEvent struct {
	Op       string
	Sent     []byte
	Received []byte
	Err      error
	Elapsed  time.Duration
}

// Observer is told about every exchange a Session performs. It must not call
// back into the Session.
type Observer interface {
	Exchange(ev ExchangeEvent)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ExchangeEvent)

func (f ObserverFunc) Exchange(ev ExchangeEvent) { f(ev) }

// NoopObserver discards events.
type NoopObserver struct{}

func (NoopObserver) Exchange(ExchangeEvent) {}

// ZapObserver logs every exchange at debug level and failures at warn.
type ZapObserver struct {
	Logger *zap.Logger
}

func NewZapObserver(logger *zap.Logger) *ZapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver{Logger: logger.Named("tenma")}
}

func (o *ZapObserver) Exchange(ev ExchangeEvent) {
	fields := []zap.Field{
		zap.String("op", ev.Op),
		zap.ByteString("sent", ev.Sent),
		zap.ByteString("received", ev.Received),
		zap.Duration("elapsed", ev.Elapsed),
	}
	if ev.Err != nil {
		o.Logger.Warn("exchange failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	o.Logger.Debug("exchange", fields...)
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) Exchange(ev ExchangeEvent) {
	for _, o := range m {
		if o != nil {
			o.Exchange(ev)
		}
	}
}
