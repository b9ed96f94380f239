package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

// ExpirySweepJob ends running sessions whose time limit has elapsed. The
// timer endpoint performs the same sweep on read, so this job only exists to
// catch sessions nobody is polling.
type ExpirySweepJob struct {
	registry *session.Registry
	log      zerolog.Logger
}

// NewExpirySweepJob creates the expiry sweep job.
func NewExpirySweepJob(registry *session.Registry, log zerolog.Logger) *ExpirySweepJob {
	return &ExpirySweepJob{
		registry: registry,
		log:      log.With().Str("job", "expiry_sweep").Logger(),
	}
}

// Name returns the job name for scheduler logging.
func (j *ExpirySweepJob) Name() string {
	return "expiry_sweep"
}

// Run sweeps all registered sessions once.
func (j *ExpirySweepJob) Run() error {
	if ended := j.registry.SweepExpired(time.Now().UTC()); ended > 0 {
		j.log.Info().Int("ended", ended).Msg("Expired sessions ended")
	}
	return nil
}
