package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/repo"
)

// cronParser accepts standard 5-field specs, optional seconds and
// descriptors such as "@hourly".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SweepResult counts rows touched by one sweep.
type SweepResult struct {
	ExpiredPending     int64
	ExpiredIdempotency int64
}

// Sweeper marks abandoned pending purchases expired and removes expired
// idempotency records. Paid purchases are never touched.
type Sweeper struct {
	DB         *gorm.DB
	PendingTTL time.Duration
	Now        func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep runs one housekeeping pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := otel.Tracer("services/Sweeper").Start(ctx, "Sweep")
	defer span.End()

	var res SweepResult
	now := s.now().UTC()

	n, err := repo.ExpireStalePending(ctx, s.DB, now.Add(-s.PendingTTL))
	if err != nil {
		return res, err
	}
	res.ExpiredPending = n
	sweptRows.WithLabelValues("expired_purchase").Add(float64(n))

	n, err = repo.DeleteExpiredIdempotency(ctx, s.DB, now)
	if err != nil {
		return res, err
	}
	res.ExpiredIdempotency = n
	sweptRows.WithLabelValues("idempotency").Add(float64(n))
	return res, nil
}

// Schedule registers the sweep on a new cron scheduler using spec. The
// scheduler is returned unstarted.
func (s *Sweeper) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("sweep panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = log.Logger.With().Str("job", "sweep").Logger().WithContext(ctx)

		res, err := s.Sweep(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("sweep failed")
			return
		}
		zerolog.Ctx(ctx).Info().
			Int64("expired_pending", res.ExpiredPending).
			Int64("expired_idempotency", res.ExpiredIdempotency).
			Msg("sweep done")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
