package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"zone-backtester/internal/entry"
	"zone-backtester/internal/excursion"
	"zone-backtester/internal/exits"
	"zone-backtester/internal/health"
	"zone-backtester/internal/market"
	"zone-backtester/internal/structure"
	"zone-backtester/internal/zones"
)

// Config holds every tunable of the engine. All thresholds come in here at
// construction; no component reads ambient global state.
type Config struct {
	EntryTimeframe      market.Timeframe    `json:"entry_timeframe"`
	StructureTimeframes [4]market.Timeframe `json:"structure_timeframes"`
	FractalWindow       int                 `json:"fractal_window"`
	OriginLookback      time.Duration       `json:"origin_lookback"`
	Exits               exits.Config        `json:"exits"`
	Health              health.Thresholds   `json:"health"`
	VolumeAvgPeriod     int                 `json:"volume_avg_period"`
	FastSMAPeriod       int                 `json:"fast_sma_period"`
	SlowSMAPeriod       int                 `json:"slow_sma_period"`
	CVDSlopePeriod      int                 `json:"cvd_slope_period"`
}

// Validate fills defaults and rejects unusable configurations.
func (c *Config) Validate() error {
	if !c.EntryTimeframe.Valid() {
		return fmt.Errorf("invalid entry timeframe %q", c.EntryTimeframe)
	}
	for _, tf := range c.StructureTimeframes {
		if !tf.Valid() {
			return fmt.Errorf("invalid structure timeframe %q", tf)
		}
	}
	if c.FractalWindow <= 0 {
		c.FractalWindow = 2
	}
	if c.OriginLookback <= 0 {
		c.OriginLookback = 30 * time.Minute
	}
	if c.VolumeAvgPeriod <= 0 {
		c.VolumeAvgPeriod = 20
	}
	if c.FastSMAPeriod <= 0 {
		c.FastSMAPeriod = 9
	}
	if c.SlowSMAPeriod <= 0 {
		c.SlowSMAPeriod = 21
	}
	if c.CVDSlopePeriod <= 0 {
		c.CVDSlopePeriod = 10
	}
	return nil
}

// SessionInput is everything one (ticker, day) simulation consumes. All I/O
// happens before the pass; nothing here is fetched mid-simulation.
type SessionInput struct {
	Ticker  string          `json:"ticker"`
	Session market.Session  `json:"session"`
	Bars    []market.Bar    `json:"bars"` // entry-timeframe series, time-ordered, gap-tolerant
	Zones   []zones.Zone    `json:"zones"`

	// StructureBars carries the higher-timeframe series keyed by timeframe.
	// Missing series simply leave that timeframe neutral.
	StructureBars map[market.Timeframe][]market.Bar `json:"structure_bars,omitempty"`

	// Targets optionally maps zone ID to a precomputed target level. The
	// exit machine uses the greater of this and the risk-multiple target.
	Targets map[string]float64 `json:"targets,omitempty"`
}

// Summary aggregates a session's closed trades.
type Summary struct {
	TotalTrades    int     `json:"total_trades"`
	Winners        int     `json:"winners"`
	Losers         int     `json:"losers"`
	WinRate        float64 `json:"win_rate"`
	NetR           float64 `json:"net_r"`
	AvgEntryHealth float64 `json:"avg_entry_health"`
}

// SessionResult is the finalized output of one session.
type SessionResult struct {
	Ticker             string         `json:"ticker"`
	Session            market.Session `json:"session"`
	Trades             []Trade        `json:"trades"`
	Events             []Event        `json:"events"`
	SkippedZones       int            `json:"skipped_zones"`
	SkippedEvaluations int            `json:"skipped_evaluations"`
	Summary            Summary        `json:"summary"`
}

// position pairs an open trade with its per-trade bookkeeping.
type position struct {
	trade   *Trade
	tracker *excursion.Tracker
	events  []Event
	seq     int
}

func (p *position) emit(ev Event) {
	p.seq++
	ev.Seq = p.seq
	ev.TradeID = p.trade.ID
	p.events = append(p.events, ev)
}

// Simulator walks a bar stream once and drives the structure detectors,
// entry classifier, health scorer, exit machine and excursion tracker.
// Replaying the same input produces byte-identical results: there is no
// wall-clock read and no random input anywhere in the pass.
type Simulator struct {
	cfg     Config
	log     zerolog.Logger
	onEvent func(ticker string, ev Event)
}

// New creates a simulator. The config is validated and defaulted once here.
func New(cfg Config, log zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "Simulator").Logger(),
	}, nil
}

// SetEventSink registers a callback invoked for every emitted event, used
// to stream progress to websocket clients. The sink must not block.
func (s *Simulator) SetEventSink(fn func(ticker string, ev Event)) {
	s.onEvent = fn
}

// RunSession simulates one session. A session with no bars returns ErrNoBars;
// a session with some unusable zones still returns all trades that completed,
// annotated with the skipped-zone count. An InvariantError aborts the session.
func (s *Simulator) RunSession(in SessionInput) (*SessionResult, error) {
	if len(in.Bars) == 0 {
		return nil, ErrNoBars
	}
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", in.Ticker, err)
	}

	result := &SessionResult{Ticker: in.Ticker, Session: in.Session}

	// Zones iterate in ID order so replays are byte-identical.
	active := make([]zones.Zone, 0, len(in.Zones))
	for _, z := range in.Zones {
		if err := z.Validate(); err != nil {
			s.log.Warn().Str("ticker", in.Ticker).Err(err).Msg("skipping unusable zone")
			result.SkippedZones++
			continue
		}
		active = append(active, z)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	entryDet := structure.NewDetector(s.cfg.FractalWindow)
	higher := make([]*structure.Detector, len(s.cfg.StructureTimeframes))
	cursors := make([]int, len(s.cfg.StructureTimeframes))
	for i := range s.cfg.StructureTimeframes {
		higher[i] = structure.NewDetector(s.cfg.FractalWindow)
	}

	classifier := entry.NewClassifier(s.cfg.EntryTimeframe.BarsForWindow(s.cfg.OriginLookback))
	scorer := health.NewScorer(s.cfg.Health)
	evaluator := exits.NewEvaluator(s.cfg.Exits)

	barDur := s.cfg.EntryTimeframe.Duration()
	open := make(map[string]*position, len(active))

	// Index of the first bar inside the session, for VWAP anchoring.
	vwapStart := len(in.Bars)
	for i, b := range in.Bars {
		if !b.StartTime.Before(in.Session.Start) {
			vwapStart = i
			break
		}
	}

	var lastBar market.Bar
	var lastBarIdx int

	for i, bar := range in.Bars {
		lastBar, lastBarIdx = bar, i

		// (1) Update all timeframe structure states.
		for t, tf := range s.cfg.StructureTimeframes {
			series := in.StructureBars[tf]
			for cursors[t] < len(series) && !series[cursors[t]].StartTime.After(bar.StartTime) {
				higher[t].Update(series[cursors[t]])
				cursors[t]++
			}
		}
		entrySt := entryDet.Update(bar)

		inputs := s.buildInputs(in.Bars, i, vwapStart, higher)
		inSession := in.Session.Contains(bar.StartTime)

		// (2) Entry evaluation for every zone with no open trade.
		// Pre/post-market bars feed indicators only; they never open trades.
		if inSession {
			for _, z := range active {
				if _, busy := open[z.ID]; busy {
					continue // at most one open trade per zone; new signals suppressed
				}
				sig, skipped := classifier.Evaluate(in.Bars, i, z)
				if skipped {
					result.SkippedEvaluations++
					continue
				}
				if sig == nil {
					continue
				}
				pos, err := s.openTrade(in, z, sig, bar, i, barDur, scorer, evaluator, inputs, open)
				if err != nil {
					return nil, err
				}
				open[z.ID] = pos
				s.notify(in.Ticker, pos.events[len(pos.events)-1])
			}
		}

		// (3) Exit evaluation and excursion tracking for every open trade.
		for _, z := range active {
			pos, ok := open[z.ID]
			if !ok {
				continue
			}
			trade := pos.trade
			offset := i - trade.EntryBar

			score := scorer.Evaluate(inputs, trade.Side)
			upd := pos.tracker.Observe(bar, offset, score)
			if upd.HealthChanged {
				ev := Event{
					Type:        EventHealthChange,
					Time:        s.canonicalTime(trade, in.Session, offset, barDur),
					BarOffset:   offset,
					Price:       bar.Close,
					Score:       score.Value,
					HealthDelta: upd.HealthDelta,
					Factors:     score.Factors,
				}
				pos.emit(ev)
				s.notify(in.Ticker, ev)
			}

			dec := evaluator.Evaluate(bar, trade.Side, z, trade.TargetPrice, entrySt, in.Session)
			if dec == nil {
				continue
			}
			if err := s.closeTrade(result, in, pos, dec, bar, i, barDur); err != nil {
				return nil, err
			}
			delete(open, z.ID)
		}
	}

	// Data ran out with trades still open: the session is over, force the
	// end-of-day exit at the last observed close.
	for _, z := range active {
		pos, ok := open[z.ID]
		if !ok {
			continue
		}
		dec := &exits.Decision{Reason: exits.ReasonEOD, Price: lastBar.Close}
		if err := s.closeTrade(result, in, pos, dec, lastBar, lastBarIdx, barDur); err != nil {
			return nil, err
		}
		delete(open, z.ID)
	}

	s.summarize(result)
	s.log.Info().
		Str("ticker", in.Ticker).
		Int("trades", result.Summary.TotalTrades).
		Int("skipped_zones", result.SkippedZones).
		Int("skipped_evaluations", result.SkippedEvaluations).
		Msg("session simulated")

	return result, nil
}

// openTrade builds the trade aggregate and its ENTRY event.
func (s *Simulator) openTrade(
	in SessionInput,
	z zones.Zone,
	sig *entry.Signal,
	bar market.Bar,
	barIdx int,
	barDur time.Duration,
	scorer *health.Scorer,
	evaluator *exits.Evaluator,
	inputs health.Inputs,
	open map[string]*position,
) (*position, error) {
	if prev, exists := open[z.ID]; exists {
		return nil, &InvariantError{TradeID: prev.trade.ID, Bar: barIdx, Detail: "second trade opened on zone " + z.ID}
	}

	score := scorer.Evaluate(inputs, sig.Side)
	entryTime := in.Session.Clamp(bar.StartTime.Add(barDur))

	trade := &Trade{
		ID:          newTradeID(in.Ticker, z.ID, entryTime),
		Ticker:      in.Ticker,
		Zone:        z,
		Side:        sig.Side,
		Model:       sig.Model,
		AgainstBias: tradesAgainstBias(z, sig.Side),
		EntryPrice:  sig.Price,
		EntryTime:   entryTime,
		EntryBar:    barIdx,
		EntryHealth: score,
		StopPrice:   evaluator.StopPrice(sig.Side, z),
	}
	trade.TargetPrice = evaluator.TargetPrice(sig.Side, sig.Price, in.Targets[z.ID], z)

	pos := &position{
		trade:   trade,
		tracker: excursion.NewTracker(sig.Side, sig.Price, score),
	}
	pos.emit(Event{
		Type:      EventEntry,
		Time:      entryTime,
		BarOffset: 0,
		Price:     sig.Price,
		Score:     score.Value,
		Factors:   score.Factors,
	})
	return pos, nil
}

// closeTrade finalizes the trade, resolves canonical MFE/MAE times, and
// flushes the trade's event log into the session result.
func (s *Simulator) closeTrade(
	result *SessionResult,
	in SessionInput,
	pos *position,
	dec *exits.Decision,
	bar market.Bar,
	barIdx int,
	barDur time.Duration,
) error {
	trade := pos.trade
	if trade.Closed() {
		return &InvariantError{TradeID: trade.ID, Bar: barIdx, Detail: "trade closed twice"}
	}

	exitTime := in.Session.Clamp(bar.StartTime.Add(barDur))
	if dec.Reason == exits.ReasonEOD && !bar.StartTime.Before(in.Session.ForcedExit) {
		// The forced exit fires at the cutoff time exactly.
		exitTime = in.Session.ForcedExit
	}
	trade.finalize(dec.Reason, dec.Price, exitTime, barIdx)
	trade.HealthDelta = pos.tracker.HealthDelta()

	mfePrice, mfeOff := pos.tracker.MFE()
	maePrice, maeOff := pos.tracker.MAE()
	trade.MFEPrice, trade.MFEBarOffset = mfePrice, mfeOff
	trade.MAEPrice, trade.MAEBarOffset = maePrice, maeOff

	// Same-bar and adjacent-bar trades pin MFE to the entry instant and MAE
	// to the exit instant; favorable excursion is assumed to precede adverse.
	if trade.ExitBar-trade.EntryBar <= 1 {
		trade.MFETime = trade.EntryTime
		trade.MAETime = trade.ExitTime
	} else {
		trade.MFETime = s.canonicalTime(trade, in.Session, mfeOff, barDur)
		trade.MAETime = s.canonicalTime(trade, in.Session, maeOff, barDur)
	}

	score := pos.tracker.CurrentScore()
	for _, ev := range []Event{
		{Type: EventMFE, Time: trade.MFETime, BarOffset: mfeOff, Price: mfePrice, Score: score.Value, HealthDelta: trade.HealthDelta, Factors: score.Factors},
		{Type: EventMAE, Time: trade.MAETime, BarOffset: maeOff, Price: maePrice, Score: score.Value, HealthDelta: trade.HealthDelta, Factors: score.Factors},
		{Type: EventExit, Time: trade.ExitTime, BarOffset: trade.ExitBar - trade.EntryBar, Price: trade.ExitPrice, Score: score.Value, HealthDelta: trade.HealthDelta, Factors: score.Factors},
	} {
		pos.emit(ev)
		s.notify(in.Ticker, pos.events[len(pos.events)-1])
	}

	result.Trades = append(result.Trades, *trade)
	result.Events = append(result.Events, pos.events...)
	return nil
}

// tradesAgainstBias reports whether the fired side contradicts the zone's
// declared bias. Bias never gates entry; contradicting it only annotates
// the trade for downstream analysis.
func tradesAgainstBias(z zones.Zone, side market.Side) bool {
	switch z.Bias {
	case zones.BiasBullish:
		return side == market.SideShort
	case zones.BiasBearish:
		return side == market.SideLong
	}
	return false
}

// canonicalTime derives an event time from the entry anchor and bar offset,
// constrained to the session window. Bar timestamps outside the session
// (premarket bars kept for indicator lookback) never leak into events.
func (s *Simulator) canonicalTime(trade *Trade, sess market.Session, barOffset int, barDur time.Duration) time.Time {
	return sess.Clamp(trade.EntryTime.Add(time.Duration(barOffset) * barDur))
}

// buildInputs assembles the raw numeric health inputs for the current bar.
// The exact same construction serves entry-time and in-trade evaluation.
func (s *Simulator) buildInputs(bars []market.Bar, i, vwapStart int, higher []*structure.Detector) health.Inputs {
	hist := bars[:i+1]

	fast := health.CalculateSMA(hist, s.cfg.FastSMAPeriod)
	slow := health.CalculateSMA(hist, s.cfg.SlowSMAPeriod)
	prevFast := health.CalculateSMA(bars[:i], s.cfg.FastSMAPeriod)
	prevSlow := health.CalculateSMA(bars[:i], s.cfg.SlowSMAPeriod)

	var vwap float64
	if i >= vwapStart {
		vwap = health.SessionVWAP(bars[vwapStart : i+1])
	}

	in := health.Inputs{
		VolumeROC:      health.VolumeRateOfChange(hist, s.cfg.VolumeAvgPeriod),
		BarVolumeDelta: health.BarVolumeDelta(bars[i]),
		CVDSlope:       health.CVDSlope(hist, s.cfg.CVDSlopePeriod),
		FastSMA:        fast,
		SlowSMA:        slow,
		SMASpread:      fast - slow,
		PrevSMASpread:  prevFast - prevSlow,
		Price:          bars[i].Close,
		VWAP:           vwap,
	}
	for t := range higher {
		in.TimeframeDirections[t] = higher[t].State().Direction
	}
	return in
}

func (s *Simulator) notify(ticker string, ev Event) {
	if s.onEvent != nil {
		s.onEvent(ticker, ev)
	}
}

func (s *Simulator) summarize(r *SessionResult) {
	sum := Summary{TotalTrades: len(r.Trades)}
	healthTotal := 0
	for _, t := range r.Trades {
		// Zero-R scratch trades (e.g. a forced exit at the entry price)
		// count in neither bucket.
		switch {
		case t.RMultiple > 0:
			sum.Winners++
		case t.RMultiple < 0:
			sum.Losers++
		}
		sum.NetR += t.RMultiple
		healthTotal += t.EntryHealth.Value
	}
	if sum.TotalTrades > 0 {
		sum.WinRate = float64(sum.Winners) / float64(sum.TotalTrades) * 100
		sum.AvgEntryHealth = float64(healthTotal) / float64(sum.TotalTrades)
	}
	r.Summary = sum
}
