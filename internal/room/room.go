package room

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/clipbingo/clip-bingo-backend/internal/card"
	"github.com/clipbingo/clip-bingo-backend/internal/claim"
	"github.com/clipbingo/clip-bingo-backend/internal/pattern"
	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
	"github.com/clipbingo/clip-bingo-backend/internal/session"
	"github.com/clipbingo/clip-bingo-backend/internal/store"
	"github.com/clipbingo/clip-bingo-backend/internal/tracks"
	"github.com/clipbingo/clip-bingo-backend/internal/types"
)

type GameState string

const (
	// StateIdle: between rounds, nothing playing.
	StateIdle GameState = "idle"
	// StateInRound: a round is active, clips may play, marks count.
	StateInRound GameState = "in_round"
	// StateEnded: the final configured round was won; event over until reset.
	StateEnded GameState = "ended"
)

type Config struct {
	// EventRounds is how many round slots a fresh event carries.
	EventRounds int
	// ReviewTimeout bounds how long a claim may sit in host review.
	ReviewTimeout time.Duration
	// AutoAcceptWins skips host review for clean complete claims. Off by
	// default: the pause is the fairness mechanism.
	AutoAcceptWins bool
	Sync           session.Config
}

func DefaultConfig() Config {
	return Config{
		EventRounds:   3,
		ReviewTimeout: 10 * time.Second,
		Sync:          session.DefaultConfig(),
	}
}

type Deps struct {
	Store    store.Store
	Provider tracks.Provider
	Logger   *zap.Logger
}

// Room is the single owner of all mutable session state. One goroutine
// drains the inbox; every mark, claim, round transition, and reconnect
// resync is applied serially in arrival order.
type Room struct {
	code  string
	inbox chan Msg
	cfg   Config
	deps  Deps
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	version     int
	gameState   GameState
	currentClip string
	paused      bool
	patternSpec pattern.Spec

	manager *rounds.Manager
	arbiter *claim.Arbiter
	syncer  *session.Protocol

	cards        map[string]*card.Card
	marked       map[string]map[card.Pos]bool
	playedOrder  []string
	playedSet    map[string]bool
	poolTracks   []tracks.Track
	participants map[string]bool
	hostID       string
	deviceID     string

	clients map[string]chan types.ServerMessage
	rng     *rand.Rand

	saves chan store.EventState
}

func New(parent context.Context, code string, cfg Config, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}
	if cfg.EventRounds <= 0 {
		cfg.EventRounds = DefaultConfig().EventRounds
	}
	if cfg.ReviewTimeout <= 0 {
		cfg.ReviewTimeout = DefaultConfig().ReviewTimeout
	}

	r := &Room{
		code:         code,
		inbox:        make(chan Msg, 64),
		cfg:          cfg,
		deps:         deps,
		log:          deps.Logger.With(zap.String("room", code)),
		ctx:          ctx,
		cancel:       cancel,
		gameState:    StateIdle,
		patternSpec:  pattern.Spec{Kind: pattern.Line},
		arbiter:      claim.NewArbiter(cfg.AutoAcceptWins),
		syncer:       session.NewProtocol(cfg.Sync),
		cards:        make(map[string]*card.Card),
		marked:       make(map[string]map[card.Pos]bool),
		playedSet:    make(map[string]bool),
		participants: make(map[string]bool),
		clients:      make(map[string]chan types.ServerMessage),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		saves:        make(chan store.EventState, 16),
	}

	// Rounds survive a full client reload; pick up whatever the store has.
	if st, ok, err := deps.Store.LoadEvent(ctx, code); err != nil {
		r.log.Warn("load event state", zap.Error(err))
		r.manager = rounds.New(cfg.EventRounds)
	} else if ok {
		r.manager = rounds.Restore(st.Rounds)
	} else {
		r.manager = rounds.New(cfg.EventRounds)
	}

	go r.persister()
	go r.loop()
	return r
}

// Inbox exposes the message queue to the transport layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				if ch, ok := r.clients[msg.ParticipantID]; ok && (msg.Outbox == nil || ch == msg.Outbox) {
					close(ch)
					delete(r.clients, msg.ParticipantID)
				}
			case FromClient:
				r.handleClient(msg.ParticipantID, msg.Msg)
			case clipStarted:
				r.handleClipStarted(msg.clipID)
			case clipStartFailed:
				r.log.Warn("start clip failed", zap.String("clip", msg.clipID), zap.Error(msg.err))
				r.sendError(msg.participantID, "could not start clip: "+msg.err.Error())
			case roundTracksLoaded:
				r.handleRoundTracksLoaded(msg)
			case roundTracksFailed:
				r.log.Warn("load round tracks failed", zap.Int("round", msg.roundIndex), zap.Error(msg.err))
				r.sendError(msg.participantID, "could not load tracks for round: "+msg.err.Error())
			case claimTimeout:
				if c, fired := r.arbiter.TimeoutFire(msg.gen, time.Now()); fired {
					r.log.Info("review timed out", zap.String("claimant", c.ClaimantID))
					r.finishRejected(c)
					r.promoteQueued()
				}
			case GetState:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

// ---- joins and resync ----

func (r *Room) handleJoin(msg Join) {
	id := msg.ParticipantID
	returning := r.participants[id]
	r.participants[id] = true
	if r.hostID == "" {
		r.hostID = id
	}

	if old, ok := r.clients[id]; ok && old != msg.Outbox {
		// Same identity on a new stream; retire the old outbox.
		close(old)
	}
	r.clients[id] = msg.Outbox

	now := time.Now()
	if returning {
		// Polled playback reports from this client are suspect for a
		// while; its view of the world is behind.
		r.syncer.NoteReconnect(id, now)
	}

	// Late joiner mid-round still gets a card.
	if r.gameState == StateInRound && r.cards[id] == nil && len(r.poolTracks) >= card.SquareCount {
		r.dealCard(id)
	}

	// Push everything the client cannot know it missed: card, state,
	// current clip, pause flag.
	if c := r.cards[id]; c != nil {
		r.send(id, types.ServerMessage{Type: types.SrvCardAssigned, Card: c})
	}
	snap := r.snapshot()
	r.send(id, types.ServerMessage{Type: types.SrvSessionState, Version: r.version, State: &snap})
}

// ---- client commands ----

func (r *Room) handleClient(pid string, m types.ClientMessage) {
	if !r.participants[pid] {
		r.sendError(pid, "join the room first")
		return
	}

	switch m.Type {
	case types.MsgMarkSquare:
		r.handleMark(pid, m.Position, true)
	case types.MsgUnmarkSquare:
		r.handleMark(pid, m.Position, false)
	case types.MsgClaimWin:
		r.handleClaim(pid)
	case types.MsgReviewClaim:
		r.handleReview(pid, m.Approved, m.Reason)
	case types.MsgPlanRound:
		r.handlePlanRound(pid, m.RoundIndex, m.Name, m.PoolIDs)
	case types.MsgStartRound:
		r.handleStartRound(pid, m.RoundIndex)
	case types.MsgCompleteRound:
		r.handleCompleteRound(pid)
	case types.MsgResetEvent:
		r.handleResetEvent(pid)
	case types.MsgSetPattern:
		r.handleSetPattern(pid, m.Pattern)
	case types.MsgStartClip:
		r.handleStartClip(pid, m.ClipID, m.DeviceID)
	case types.MsgPlaybackReport:
		r.handlePlaybackReport(pid, m.Playing)
	default:
		r.sendError(pid, "unknown message type")
	}
}

func (r *Room) handleMark(pid string, pos card.Pos, mark bool) {
	c := r.cards[pid]
	if c == nil {
		r.sendError(pid, "no card assigned")
		return
	}
	if _, ok := c.SquareAt(pos); !ok {
		r.sendError(pid, "no such square")
		return
	}
	mm := r.marked[pid]
	if mm == nil {
		mm = make(map[card.Pos]bool)
		r.marked[pid] = mm
	}
	if mark {
		mm[pos] = true
	} else {
		delete(mm, pos)
	}
	r.bumpAndBroadcast()
}

func (r *Room) handleClaim(pid string) {
	if r.gameState != StateInRound {
		r.sendError(pid, "no round in progress")
		return
	}
	now := time.Now()
	c, out := r.arbiter.Submit(pid, r.patternSpec, r.evaluator(), now)
	r.applyClaimOutcome(pid, c, out)
}

func (r *Room) applyClaimOutcome(pid string, c *claim.Claim, out claim.Outcome) {
	switch out {
	case claim.OutcomeQueued:
		// Will be re-evaluated against the then-current state once the
		// review slot frees up.
		r.log.Info("claim queued", zap.String("claimant", pid))
	case claim.OutcomeInvalid:
		r.sendError(pid, pattern.ErrInvalidPatternClaim.Error())
	case claim.OutcomeReview:
		r.paused = true
		r.stopPlayback()
		r.armClaimTimeout(r.arbiter.Generation())
		review := pattern.Review(r.cards[c.ClaimantID], r.marked[c.ClaimantID], r.playedSet, c.Result.WinningPositions)
		r.broadcast(types.ServerMessage{
			Type:     types.SrvGamePaused,
			Claimant: c.ClaimantID,
			Review:   review,
		})
		r.bumpAndBroadcast()
	case claim.OutcomeAutoAccepted:
		r.finishApproved(c)
	}
}

func (r *Room) handleReview(pid string, approved bool, reason string) {
	if !r.requireHost(pid) {
		return
	}
	c, err := r.arbiter.Resolve(approved, reason, time.Now())
	if err != nil {
		r.sendError(pid, err.Error())
		return
	}
	if approved {
		r.finishApproved(c)
	} else {
		r.finishRejected(c)
	}
	r.promoteQueued()
}

func (r *Room) promoteQueued() {
	if r.gameState != StateInRound {
		// The round just resolved out from under the queue; nothing left
		// to win.
		r.arbiter.ResetRound()
		return
	}
	for {
		c, out, ok := r.arbiter.PromoteNext(r.patternSpec, r.evaluator(), time.Now())
		if !ok {
			return
		}
		r.applyClaimOutcome(c.ClaimantID, c, out)
		if out == claim.OutcomeReview {
			return
		}
	}
}

func (r *Room) finishApproved(c *claim.Claim) {
	r.paused = false
	r.broadcast(types.ServerMessage{
		Type:     types.SrvClaimResolved,
		Claimant: c.ClaimantID,
		Approved: true,
		Review:   pattern.Review(c.CardSnapshot, r.marked[c.ClaimantID], r.playedSet, c.Result.WinningPositions),
	})

	idx := r.manager.ActiveIndex()
	final := r.manager.IsFinalConfigured(idx)
	if _, err := r.manager.CompleteActive(time.Now()); err != nil {
		r.log.Warn("complete round after win", zap.Error(err))
	}
	r.stopPlayback()
	r.currentClip = ""
	if final {
		r.gameState = StateEnded
		r.broadcast(types.ServerMessage{Type: types.SrvGameSessionEnded, Claimant: c.ClaimantID})
	} else {
		r.gameState = StateIdle
		r.broadcast(types.ServerMessage{Type: types.SrvRoundComplete, RoundIndex: idx})
	}
	r.persist()
	r.bumpAndBroadcast()
}

func (r *Room) finishRejected(c *claim.Claim) {
	r.paused = false
	r.broadcast(types.ServerMessage{
		Type:     types.SrvClaimResolved,
		Claimant: c.ClaimantID,
		Approved: false,
		Reason:   c.Reason,
	})
	r.bumpAndBroadcast()
}

// ---- rounds ----

func (r *Room) handlePlanRound(pid string, idx int, name string, poolIDs []string) {
	if !r.requireHost(pid) {
		return
	}
	if err := r.manager.Plan(idx, name, poolIDs); err != nil {
		r.sendError(pid, err.Error())
		return
	}
	r.persist()
	r.bumpAndBroadcast()
}

func (r *Room) handleStartRound(pid string, idx int) {
	if !r.requireHost(pid) {
		return
	}
	if err := r.manager.CanActivate(idx); err != nil {
		r.sendError(pid, err.Error())
		return
	}
	round := r.manager.Rounds()[idx]

	// Catalog lookup happens off the loop; the result re-enters as a
	// message and is validated again on arrival.
	go func() {
		ts, err := r.deps.Provider.ListPlayableTracks(r.ctx, round.TrackPoolIDs)
		if err != nil {
			r.post(roundTracksFailed{participantID: pid, roundIndex: idx, err: err})
			return
		}
		r.post(roundTracksLoaded{participantID: pid, roundIndex: idx, tracks: ts})
	}()
}

func (r *Room) handleRoundTracksLoaded(msg roundTracksLoaded) {
	pool := dedupeTracks(msg.tracks)
	if len(pool) < card.SquareCount {
		r.sendError(msg.participantID, card.ErrInsufficientPool.Error())
		return
	}
	if err := r.manager.Activate(msg.roundIndex, time.Now()); err != nil {
		// Room state moved between the fetch and now; reject, no-op.
		r.sendError(msg.participantID, err.Error())
		return
	}

	r.poolTracks = pool
	r.resetRoundState()
	r.gameState = StateInRound

	for pid := range r.clients {
		r.dealCard(pid)
		if c := r.cards[pid]; c != nil {
			r.send(pid, types.ServerMessage{Type: types.SrvCardAssigned, Card: c})
		}
	}
	r.persist()
	r.bumpAndBroadcast()
}

func (r *Room) handleCompleteRound(pid string) {
	if !r.requireHost(pid) {
		return
	}
	idx, err := r.manager.CompleteActive(time.Now())
	if err != nil {
		r.sendError(pid, err.Error())
		return
	}
	// Completing the round moots any in-flight verification: the pending
	// review resolves as rejected and the queue drains.
	if c, rerr := r.arbiter.Resolve(false, "round completed", time.Now()); rerr == nil {
		r.finishRejected(c)
	}
	r.arbiter.ResetRound()
	r.paused = false
	r.stopPlayback()
	r.gameState = StateIdle
	r.currentClip = ""
	r.broadcast(types.ServerMessage{Type: types.SrvRoundComplete, RoundIndex: idx})
	r.persist()
	r.bumpAndBroadcast()
}

func (r *Room) handleResetEvent(pid string) {
	if !r.requireHost(pid) {
		return
	}
	r.manager.ResetEvent()
	r.stopPlayback()
	r.resetRoundState()
	r.poolTracks = nil
	r.gameState = StateIdle
	r.currentClip = ""
	r.persist()
	r.bumpAndBroadcast()
}

// resetRoundState drops everything a round transition invalidates: cards,
// marks, the played-clip log, and any in-flight verification.
func (r *Room) resetRoundState() {
	r.cards = make(map[string]*card.Card)
	r.marked = make(map[string]map[card.Pos]bool)
	r.playedOrder = nil
	r.playedSet = make(map[string]bool)
	r.arbiter.ResetRound()
	r.paused = false
	r.currentClip = ""
}

func (r *Room) handleSetPattern(pid string, spec *pattern.Spec) {
	if !r.requireHost(pid) {
		return
	}
	if spec == nil {
		r.sendError(pid, "missing pattern")
		return
	}
	switch spec.Kind {
	case pattern.Line, pattern.FourCorners, pattern.X, pattern.FullCard:
	case pattern.Custom:
		if len(spec.Mask) == 0 {
			r.sendError(pid, "custom pattern needs a mask")
			return
		}
	default:
		r.sendError(pid, "unknown pattern kind")
		return
	}
	// Changing the pattern never un-marks squares.
	r.patternSpec = *spec
	r.bumpAndBroadcast()
}

// ---- playback ----

func (r *Room) handleStartClip(pid, clipID, deviceID string) {
	if !r.requireHost(pid) {
		return
	}
	if r.gameState != StateInRound {
		r.sendError(pid, "no round in progress")
		return
	}
	if r.paused {
		r.sendError(pid, "paused for win verification")
		return
	}
	inPool := false
	for _, t := range r.poolTracks {
		if t.ClipID == clipID {
			inPool = true
			break
		}
	}
	if !inPool {
		r.sendError(pid, "clip not in this round's pool")
		return
	}
	if deviceID != "" {
		r.deviceID = deviceID
	}
	dev := r.deviceID

	go func() {
		if err := r.deps.Provider.StartClip(r.ctx, clipID, dev); err != nil {
			r.post(clipStartFailed{participantID: pid, clipID: clipID, err: err})
			return
		}
		r.post(clipStarted{clipID: clipID})
	}()
}

// handleClipStarted is the only writer of the played-clip log: entries are
// server-confirmed starts, never a client-side guess, and never removed
// until a round or event reset.
func (r *Room) handleClipStarted(clipID string) {
	if r.gameState != StateInRound {
		// confirmation raced a round transition
		return
	}
	if !r.playedSet[clipID] {
		r.playedSet[clipID] = true
		r.playedOrder = append(r.playedOrder, clipID)
	}
	r.currentClip = clipID
	r.syncer.NoteClipStarted(time.Now())
	r.broadcast(types.ServerMessage{Type: types.SrvClipStarted, ClipID: clipID})
	r.bumpAndBroadcast()
}

func (r *Room) handlePlaybackReport(pid string, playing bool) {
	now := time.Now()
	if !r.syncer.AcceptPlaybackReport(pid, playing, now) {
		// Presumed transport-lag artifact; dropped silently but counted.
		return
	}
	if playing || r.currentClip == "" || r.gameState != StateInRound || r.paused {
		return
	}
	// Playback genuinely stalled; nudge it back, at most once per window.
	if !r.syncer.AllowResumeNudge(now) {
		return
	}
	clip, dev := r.currentClip, r.deviceID
	r.log.Info("nudging playback resume", zap.String("clip", clip))
	go func() {
		if err := r.deps.Provider.StartClip(r.ctx, clip, dev); err != nil {
			r.log.Warn("resume nudge failed", zap.Error(err))
		}
	}()
}

// ---- helpers ----

func (r *Room) evaluator() claim.Evaluator {
	return func(pid string) (pattern.Result, *card.Card, bool) {
		c := r.cards[pid]
		if c == nil {
			return pattern.Result{}, nil, false
		}
		res := pattern.Evaluate(c, r.marked[pid], r.playedSet, r.patternSpec)
		return res, c.Clone(), true
	}
}

func (r *Room) dealCard(pid string) {
	c, err := card.Generate(r.poolTracks, r.rng)
	if err != nil {
		r.log.Warn("deal card", zap.String("participant", pid), zap.Error(err))
		return
	}
	r.cards[pid] = c
	r.marked[pid] = make(map[card.Pos]bool)
}

func (r *Room) requireHost(pid string) bool {
	if pid != r.hostID {
		r.sendError(pid, "host only")
		return false
	}
	return true
}

// stopPlayback halts the playback device, best effort and off the loop.
// Callers decide whether currentClip survives: it does across a
// verification pause so a rejected claim can resume the same clip.
func (r *Room) stopPlayback() {
	if r.currentClip == "" {
		return
	}
	dev := r.deviceID
	go func() {
		if err := r.deps.Provider.StopClip(r.ctx, dev); err != nil {
			r.log.Warn("stop playback", zap.Error(err))
		}
	}()
}

func (r *Room) armClaimTimeout(gen int) {
	time.AfterFunc(r.cfg.ReviewTimeout, func() {
		select {
		case r.inbox <- claimTimeout{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

// post re-injects an async result into the command queue.
func (r *Room) post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Room) bumpAndBroadcast() {
	r.version++
	snap := r.snapshot()
	r.broadcast(types.ServerMessage{Type: types.SrvSessionState, Version: r.version, State: &snap})
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for id, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			// Slow or wedged client; drop it, it can reconnect.
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) send(pid string, msg types.ServerMessage) {
	ch, ok := r.clients[pid]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		close(ch)
		delete(r.clients, pid)
	}
}

func (r *Room) sendError(pid, text string) {
	r.send(pid, types.ServerMessage{Type: types.SrvError, Error: text})
}

func (r *Room) snapshot() types.SessionState {
	marked := make(map[string][]card.Pos, len(r.marked))
	for pid, mm := range r.marked {
		ps := make([]card.Pos, 0, len(mm))
		for p := range mm {
			ps = append(ps, p)
		}
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
		marked[pid] = ps
	}
	participants := make([]string, 0, len(r.participants))
	for p := range r.participants {
		participants = append(participants, p)
	}
	sort.Strings(participants)

	return types.SessionState{
		Version:               r.version,
		GameState:             string(r.gameState),
		CurrentClip:           r.currentClip,
		PausedForVerification: r.paused,
		ActiveRoundIndex:      r.manager.ActiveIndex(),
		Rounds:                r.manager.Rounds(),
		Pattern:               r.patternSpec,
		PlayedClips:           append([]string(nil), r.playedOrder...),
		Marked:                marked,
		Participants:          participants,
		HostID:                r.hostID,
	}
}

func (r *Room) view() View {
	hasCard := make(map[string]bool, len(r.cards))
	for pid := range r.cards {
		hasCard[pid] = true
	}
	snap := r.snapshot()
	return View{
		Version:          r.version,
		NumClients:       len(r.clients),
		GameState:        r.gameState,
		CurrentClip:      r.currentClip,
		Paused:           r.paused,
		ActiveRoundIndex: r.manager.ActiveIndex(),
		Rounds:           snap.Rounds,
		PlayedClips:      snap.PlayedClips,
		Marked:           snap.Marked,
		HostID:           r.hostID,
		StaleDiscarded:   r.syncer.StaleDiscarded(),
		HasCard:          hasCard,
	}
}

// ---- persistence ----

// persist hands the current event state to the persister goroutine so the
// command loop never blocks on the database. Saves apply in order.
func (r *Room) persist() {
	st := store.EventState{Rounds: r.manager.Rounds(), ActiveRoundIndex: r.manager.ActiveIndex()}
	select {
	case r.saves <- st:
	default:
		// Queue full; the latest save below will supersede this one soon
		// enough, but log it.
		r.log.Warn("persist queue full, dropping save")
	}
}

func (r *Room) persister() {
	// Saves run outside the room context so a shutdown cannot abort a
	// write already in the queue.
	for {
		select {
		case st := <-r.saves:
			r.save(st)
		case <-r.ctx.Done():
			for {
				select {
				case st := <-r.saves:
					r.save(st)
				default:
					return
				}
			}
		}
	}
}

func (r *Room) save(st store.EventState) {
	if err := r.deps.Store.SaveEvent(context.Background(), r.code, st); err != nil {
		r.log.Warn("save event state", zap.Error(err))
	}
}

func dedupeTracks(ts []tracks.Track) []tracks.Track {
	seen := make(map[string]bool, len(ts))
	out := make([]tracks.Track, 0, len(ts))
	for _, t := range ts {
		if t.ClipID == "" || seen[t.ClipID] {
			continue
		}
		seen[t.ClipID] = true
		out = append(out, t)
	}
	return out
}
