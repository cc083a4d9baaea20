package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/cleanbrain/brain"
	"github.com/hrygo/cleanbrain/brain/intent"
	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
)

// Request is what a resolver sees: the brain, the raw and lowercased
// message, and the extracted entities.
type Request struct {
	Brain    *brain.Brain
	Message  string
	Lower    string
	Entities intent.Entities

	now func() time.Time
}

// Now returns the dispatcher clock, fixed in tests.
func (r *Request) Now() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Func is one resolver. A nil result is a miss and the chain continues; a
// non-nil result, successful or not, is terminal.
type Func func(ctx context.Context, req *Request) *Answer

// registry binds every tag to its resolver. Dispatch order lives in
// fallbackOrder, not here.
func defaultRegistry() map[intent.Tag]Func {
	return map[intent.Tag]Func{
		intent.TagElderContact:       resolveElderContact,
		intent.TagCleaningMonth:      resolveCleaningMonth,
		intent.TagBrigade:            resolveBrigade,
		intent.TagContractorContacts: resolveContractorContacts,
		intent.TagStructuralTotals:   resolveStructuralTotals,
		intent.TagFinanceBasic:       resolveFinanceBasic,
		intent.TagFinanceBreakdown:   resolveFinanceBreakdown,
		intent.TagFinanceMoM:         resolveFinanceMoM,
		intent.TagFinanceYoY:         resolveFinanceYoY,
		intent.TagFinanceCatTrends:   resolveFinanceCatTrends,
		intent.TagTasksByAddress:     resolveTasksByAddress,
		intent.TagTasksByBrigade:     resolveTasksByBrigade,
	}
}

// fallbackOrder is tried when intent classification gives nothing, or when
// the intent-driven attempt misses. CRM-only resolvers come first, then the
// database-backed ones.
var fallbackOrder = []intent.Tag{
	intent.TagElderContact,
	intent.TagCleaningMonth,
	intent.TagBrigade,
	intent.TagContractorContacts,
	intent.TagStructuralTotals,
	intent.TagFinanceBasic,
	intent.TagFinanceBreakdown,
	intent.TagFinanceMoM,
	intent.TagFinanceYoY,
	intent.TagFinanceCatTrends,
	intent.TagTasksByAddress,
	intent.TagTasksByBrigade,
}

// Dispatcher routes one question to the first resolver that produces a
// terminal answer.
type Dispatcher struct {
	brain     *brain.Brain
	extractor *intent.Extractor
	metrics   *metrics.Collector
	logger    *logging.Logger
	registry  map[intent.Tag]Func

	now func() time.Time
}

// New creates a dispatcher over the given brain.
func New(b *brain.Brain) *Dispatcher {
	return &Dispatcher{
		brain:     b,
		extractor: intent.NewExtractor(),
		logger:    logging.FromContext(context.Background()).WithField("component", "dispatcher"),
		registry:  defaultRegistry(),
		now:       time.Now,
	}
}

// SetMetrics attaches a metrics collector.
func (d *Dispatcher) SetMetrics(m *metrics.Collector) {
	d.metrics = m
	d.brain.SetMetrics(m)
}

// SetNowFunc fixes the clock. Test hook; also pins the entity extractor's
// notion of "today".
func (d *Dispatcher) SetNowFunc(now func() time.Time) {
	d.now = now
	d.extractor.SetNowFunc(now)
}

// Ask answers one message. The returned answer always carries a rule when a
// resolver terminated the chain, and the debug envelope when requested.
func (d *Dispatcher) Ask(ctx context.Context, message string, debug bool) *Answer {
	start := time.Now()
	in := d.extractor.Extract(message)

	var entities intent.Entities
	if in != nil {
		entities = in.Entities
	} else {
		entities = d.extractor.ExtractEntities(message)
	}
	req := &Request{
		Brain:    d.brain,
		Message:  message,
		Lower:    strings.ToLower(message),
		Entities: entities,
		now:      d.now,
	}

	order := fallbackOrder
	if in != nil {
		order = make([]intent.Tag, 0, len(fallbackOrder)+1)
		order = append(order, in.Tag)
		for _, tag := range fallbackOrder {
			if tag != in.Tag {
				order = append(order, tag)
			}
		}
	}

	trace := make([]TraceEntry, 0, len(order))
	matched := make([]intent.Tag, 0, 1)

	for _, tag := range order {
		fn, ok := d.registry[tag]
		if !ok {
			continue
		}
		res, elapsed := d.attempt(ctx, tag, fn, req)

		status := StatusMiss
		if res != nil && res.Success {
			status = StatusHit
		}
		trace = append(trace, TraceEntry{Rule: tag, Status: status, ElapsedMs: elapsed.Milliseconds()})
		if d.metrics != nil {
			d.metrics.RecordResolver(string(tag), status == StatusHit, elapsed)
		}

		if res == nil {
			continue
		}

		res.Rule = tag
		if res.Success {
			matched = append(matched, tag)
		}
		if debug {
			env := &Debug{
				MatchedRules: matched,
				ElapsedMs:    time.Since(start).Milliseconds(),
				Trace:        trace,
			}
			if res.Success {
				rule := tag
				env.MatchedRule = &rule
			}
			res.Debug = env
		}
		d.logger.Info("brain_answer",
			"rule", string(tag),
			"success", res.Success,
			"error", res.Error,
			"elapsed_ms", elapsed.Milliseconds(),
			"total_ms", time.Since(start).Milliseconds(),
		)
		return res
	}

	d.logger.Info("brain_answer",
		"rule", "",
		"status", "no_match",
		"attempts", len(trace),
		"total_ms", time.Since(start).Milliseconds(),
	)
	res := failure(ErrNoMatch)
	if debug {
		res.Debug = &Debug{
			MatchedRules: matched,
			ElapsedMs:    time.Since(start).Milliseconds(),
			Trace:        trace,
		}
	}
	return res
}

// attempt runs one resolver with panic containment: a panicking resolver is
// logged and counted as a miss, and the chain continues.
func (d *Dispatcher) attempt(ctx context.Context, tag intent.Tag, fn Func, req *Request) (res *Answer, elapsed time.Duration) {
	start := time.Now()
	defer func() {
		elapsed = time.Since(start)
		if r := recover(); r != nil {
			d.logger.Error("resolver panic", "rule", string(tag), "panic", fmt.Sprint(r))
			res = nil
		}
	}()
	res = fn(ctx, req)
	return res, time.Since(start)
}
