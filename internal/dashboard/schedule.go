package dashboard

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Schedule runs periodic dashboard jobs from cron specs such as
// "@every 1m" or "0 */5 * * * *".
type Schedule struct {
	cron *cron.Cron
}

// NewSchedule creates a stopped schedule
func NewSchedule(log zerolog.Logger) *Schedule {
	logger := cronLogger{log: log.With().Str("component", "schedule").Logger()}
	return &Schedule{
		cron: cron.New(
			cron.WithParser(cron.NewParser(
				cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
			)),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

// Add registers fn under spec
func (s *Schedule) Add(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// Len returns the number of registered jobs
func (s *Schedule) Len() int {
	return len(s.cron.Entries())
}

// Start begins running jobs in the background
func (s *Schedule) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs
func (s *Schedule) Stop() {
	<-s.cron.Stop().Done()
}
