// Package candidate fans fix generation out to concurrent producers.
package candidate

import (
	"context"
	"sync"
	"time"

	"github.com/metalagman/racefix/internal/agent"
	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/logging"
	"github.com/metalagman/racefix/internal/model"
	"golang.org/x/sync/errgroup"
)

// Source produces candidates for a failing test by running count producers
// concurrently and waiting for all of them.
type Source struct {
	gen          agent.Generator
	temperatures []float64
	timeout      time.Duration
}

// NewSource builds a source. An empty temperature list falls back to the defaults;
// a non-positive timeout disables the per-task deadline.
func NewSource(gen agent.Generator, temperatures []float64, timeout time.Duration) *Source {
	if len(temperatures) == 0 {
		temperatures = config.DefaultTemperatures
	}
	return &Source{
		gen:          gen,
		temperatures: append([]float64(nil), temperatures...),
		timeout:      timeout,
	}
}

// Temperature returns the diversity value for a producer index.
func (s *Source) Temperature(producer int) float64 {
	return s.temperatures[producer%len(s.temperatures)]
}

// Generate returns at most count valid candidates in completion order.
// Failed producers are logged and dropped; an empty result is not an error.
func (s *Source) Generate(ctx context.Context, test model.FailingTest, count int) []model.Candidate {
	if count <= 0 {
		return nil
	}
	logger := logging.Component("candidate")

	var (
		mu  sync.Mutex
		out = make([]model.Candidate, 0, count)
	)
	var g errgroup.Group
	g.SetLimit(count)
	for i := 0; i < count; i++ {
		req := agent.Request{
			ProducerID:    i,
			TestID:        test.Identifier,
			TargetFile:    test.SourceFile,
			TargetContent: test.SourceContent,
			FailureOutput: test.OriginFailureOutput,
			Temperature:   s.Temperature(i),
		}
		g.Go(func() error {
			taskCtx := ctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			started := time.Now()
			cand, err := s.gen.Generate(taskCtx, req)
			if err != nil {
				logger.Warn().Err(err).
					Str("test", req.TestID).
					Int("producer", req.ProducerID).
					Dur("duration", time.Since(started)).
					Msg("producer failed")
				return nil
			}
			if !cand.Valid || cand.Content == "" {
				logger.Debug().Int("producer", req.ProducerID).Msg("producer returned no content")
				return nil
			}
			cand.ProducerID = req.ProducerID
			logger.Debug().
				Str("test", req.TestID).
				Int("producer", req.ProducerID).
				Str("target", cand.TargetFile).
				Dur("duration", time.Since(started)).
				Msg("producer finished")
			mu.Lock()
			out = append(out, cand)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // producer errors are absorbed above
	return out
}
