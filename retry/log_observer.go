package retry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/httpretry/logger"
)

// vetoLogInterval bounds how often a rejected Retry-After is logged at warn level.
const vetoLogInterval = time.Minute

type logObserver struct {
	log    logger.Logger
	vetoes *rate.Sometimes
}

// NewLogObserver logs executor events. Retries are logged at info level and
// attempts at debug level. Rejected Retry-After headers are logged at warn
// level at most once per minute and at debug level otherwise. Each retry is
// also recorded in the request's logger.WithRetryCounter tracker, if any.
func NewLogObserver(log logger.Logger) Observer {
	if log == nil {
		return nopObserver{}
	}
	return &logObserver{
		log:    log,
		vetoes: &rate.Sometimes{First: 1, Interval: vetoLogInterval},
	}
}

func (o *logObserver) Observe(ctx context.Context, ev Event) {
	l := o.log.WithContext(ctx)

	switch ev.Type {
	case EventAttempt:
		e := l.Debug().Int(AttemptKey, ev.Attempt).Str("outcome", ev.FailureKind.String())
		if ev.StatusCode != 0 {
			e = e.Int("status", ev.StatusCode)
		}
		if ev.Err != nil {
			e = e.Err(ev.Err)
		}
		e.Bool("signaled", ev.Signaled).Msg("attempt completed")

	case EventRetryAfter:
		ra := ev.RetryAfter
		if ra == nil {
			return
		}
		if ra.Valid {
			l.Debug().Int("status", ra.StatusCode).Str("reason", string(ra.Reason)).
				Dur("scheduled", ra.Scheduled).Msg("Retry-After permits retry")
			return
		}
		logged := false
		if ra.Present {
			o.vetoes.Do(func() {
				logged = true
				l.Warn().Int("status", ra.StatusCode).Str("retry_after", ra.Value).
					Str("reason", string(ra.Reason)).Dur("scheduled", ra.Scheduled).
					Msg("Retry-After rejected; not retrying")
			})
		}
		if !logged {
			l.Debug().Int("status", ra.StatusCode).Str("reason", string(ra.Reason)).
				Msg("Retry-After rejected; not retrying")
		}

	case EventRetry:
		logger.IncrementRetryCounter(ctx)
		logger.AddRetryWait(ctx, ev.Delay)
		e := l.Info().Int(AttemptKey, ev.Attempt).Dur("delay", ev.Delay).Str("outcome", ev.FailureKind.String())
		if ev.StatusCode != 0 {
			e = e.Int("status", ev.StatusCode)
		}
		if ev.Err != nil {
			e = e.Err(ev.Err)
		}
		e.Msg("retrying request")

	case EventDone:
		if ev.Exhausted {
			l.Warn().Int("attempts", ev.Attempt).Int("status", ev.StatusCode).Err(ev.Err).
				Msg("retries exhausted")
			return
		}
		l.Debug().Int("attempts", ev.Attempt).Int("status", ev.StatusCode).Msg("request finished")

	case EventCanceled:
		l.Info().Int(AttemptKey, ev.Attempt).Str("phase", string(ev.Phase)).Err(ev.Err).
			Msg("request canceled")
	}
}
