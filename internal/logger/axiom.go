package logger

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

const (
	shipBuffer    = 1000
	shipBatch     = 200
	shipTimeout   = 15 * time.Second
	defaultFlush  = 10 * time.Second
	datasetSuffix = "_" + ServiceName
)

// axiomSink turns zerolog lines at or above min into Axiom events.
type axiomSink struct {
	ship *axiomShipper
	min  zerolog.Level
}

func (s *axiomSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *axiomSink) WriteLevel(lvl zerolog.Level, p []byte) (int, error) {
	if lvl != zerolog.NoLevel && lvl < s.min {
		return len(p), nil
	}
	s.ship.Send(toEvent(p))
	return len(p), nil
}

func toEvent(p []byte) axiom.Event {
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{zerolog.MessageFieldName: string(p), zerolog.LevelFieldName: zerolog.InfoLevel.String()}
	}
	ev["service"] = ServiceName
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return ev
}

// axiomShipper batches events in the background and ingests them when a
// batch fills or the flush interval passes. Events are dropped, and
// counted, while the buffer is full.
type axiomShipper struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	dropped atomic.Int64

	stop context.CancelFunc
	done sync.WaitGroup
}

func newAxiomShipper(token, orgID, dataset string, flushEvery time.Duration) (*axiomShipper, error) {
	if dataset == "" {
		dataset = "dev" + datasetSuffix
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if flushEvery <= 0 {
		flushEvery = defaultFlush
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &axiomShipper{client: c, dataset: dataset, events: make(chan axiom.Event, shipBuffer), stop: cancel}
	s.done.Add(1)
	go s.run(ctx, flushEvery)
	return s, nil
}

func (s *axiomShipper) Send(ev axiom.Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *axiomShipper) run(ctx context.Context, flushEvery time.Duration) {
	defer s.done.Done()
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()

	batch := make([]axiom.Event, 0, shipBatch)
	for {
		select {
		case <-ctx.Done():
			// pick up whatever was queued before the stop
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					s.ingest(batch)
					return
				}
			}
		case <-tick.C:
			batch = s.ingest(batch)
		case ev := <-s.events:
			if batch = append(batch, ev); len(batch) >= shipBatch {
				batch = s.ingest(batch)
			}
		}
	}
}

// ingest sends batch and returns it emptied for reuse.
func (s *axiomShipper) ingest(batch []axiom.Event) []axiom.Event {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
	defer cancel()
	if _, err := s.client.IngestEvents(ctx, s.dataset, batch); err != nil {
		s.dropped.Add(int64(len(batch)))
	}
	return batch[:0]
}

// Close stops the shipper after a final flush and reports how many events
// never reached Axiom.
func (s *axiomShipper) Close() int64 {
	s.stop()
	s.done.Wait()
	return s.dropped.Load()
}
