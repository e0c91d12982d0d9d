package server

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chess-vn/rpsarena/pkg/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const roomEventBuffer = 32

var errNotInRoom = fmt.Errorf("%w: not in a room", ErrInvalidState)

// Events processed by a room's lane.
type (
	joinEvent struct {
		player *player
		reply  chan error
	}
	choiceEvent struct {
		conn   *connection
		choice Choice
	}
	chatEvent struct {
		conn *connection
		text string
	}
	avatarEvent struct {
		conn   *connection
		avatar string
	}
	stickerEvent struct {
		conn    *connection
		sticker string
	}
	leaveEvent struct {
		conn  *connection
		reply chan error
	}
	disconnectEvent struct {
		conn *connection
	}
	afkTimeoutEvent struct {
		round int
	}
	nextRoundEvent struct {
		round int
	}
	snapshotEvent struct {
		reply chan roomSnapshot
	}
	shutdownEvent struct{}
)

// Room is the state machine of one match. All of its state is owned by the
// run goroutine; everything else talks to it by posting events.
type Room struct {
	id   string
	code string
	cfg  GameConfig

	players [2]*player
	state   roomState
	round   int
	closed  bool

	events chan any
	done   chan struct{}

	afkTimer       *time.Timer
	nextRoundTimer *time.Timer

	broadcaster  broadcaster
	dropped      []*player
	recorder     RoundRecorder
	closeHandler func(*Room)
}

func newRoom(
	code string,
	creator *player,
	cfg GameConfig,
	recorder RoundRecorder,
	closeHandler func(*Room),
) *Room {
	r := &Room{
		id:           uuid.New().String(),
		code:         code,
		cfg:          cfg,
		state:        waitingState{},
		events:       make(chan any, roomEventBuffer),
		done:         make(chan struct{}),
		recorder:     recorder,
		closeHandler: closeHandler,
	}
	r.players[0] = creator
	r.broadcaster = broadcaster{roomCode: code, failed: r.markDropped}
	creator.conn.attach(r)
	return r
}

func (r *Room) Code() string {
	return r.code
}

// ID identifies this room instance. Unlike the code it is never reused.
func (r *Room) ID() string {
	return r.id
}

// Done is closed once the room has been torn down.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) start() {
	go r.run()
}

func (r *Room) run() {
	r.announceCreated()
	r.processDropped()
	for !r.closed {
		r.handle(<-r.events)
		r.processDropped()
	}
	logging.Info("room closed", zap.String("room_code", r.code), zap.String("room_id", r.id))
}

// post queues ev for the lane. It fails once the room is closed.
func (r *Room) post(ev any) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) join(p *player) error {
	reply := make(chan error, 1)
	if err := r.post(joinEvent{player: p, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// leave releases c's seat. It returns once c is no longer attached to r, so
// the next message on c may create or join another room.
func (r *Room) leave(c *connection) error {
	reply := make(chan error, 1)
	if err := r.post(leaveEvent{conn: c, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
		}
		if c.currentRoom() != r {
			return nil
		}
		return ErrRoomClosed
	}
}

func (r *Room) Snapshot() (roomSnapshot, error) {
	reply := make(chan roomSnapshot, 1)
	if err := r.post(snapshotEvent{reply: reply}); err != nil {
		return roomSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return roomSnapshot{}, ErrRoomClosed
	}
}

// Close tears the room down and closes its connections. Closing an already
// closed room is a no-op.
func (r *Room) Close() {
	_ = r.post(shutdownEvent{})
}

func (r *Room) handle(ev any) {
	switch ev := ev.(type) {
	case joinEvent:
		r.handleJoin(ev)
	case choiceEvent:
		r.handleChoice(ev)
	case chatEvent:
		r.handleChat(ev)
	case avatarEvent:
		r.handleAvatar(ev)
	case stickerEvent:
		r.handleSticker(ev)
	case leaveEvent:
		r.handleLeave(ev)
	case disconnectEvent:
		if p := r.playerByConn(ev.conn); p != nil {
			r.detach(p, "disconnected")
		}
	case afkTimeoutEvent:
		r.handleAfkTimeout(ev)
	case nextRoundEvent:
		r.handleNextRound(ev)
	case snapshotEvent:
		ev.reply <- r.snapshot()
	case shutdownEvent:
		r.shutdown()
	default:
		logging.Error("unknown room event", zap.String("room_code", r.code), zap.Any("event", ev))
	}
}

func (r *Room) announceCreated() {
	creator := r.players[0]
	r.broadcaster.Send([]*player{creator}, MsgRoomCreated, roomCodeResponse{RoomCode: r.code})
	r.broadcaster.Send([]*player{creator}, MsgGameUpdate, r.snapshot())
	logging.Info("room created",
		zap.String("room_code", r.code),
		zap.String("room_id", r.id),
		zap.String("player_name", creator.Name),
	)
}

func (r *Room) handleJoin(ev joinEvent) {
	if err := r.seat(ev.player); err != nil {
		ev.reply <- err
		return
	}
	ev.reply <- nil

	joiner := ev.player
	logging.Info("player joined",
		zap.String("room_code", r.code),
		zap.String("player_name", joiner.Name),
	)
	snap := r.snapshot()
	r.broadcaster.Send([]*player{joiner}, MsgJoinSuccess, snap)
	r.broadcaster.SendExcept(r.occupants(), MsgPlayerJoined, snap, joiner.Name)
	r.startRound(MsgGameStart)
}

func (r *Room) seat(p *player) error {
	if r.full() {
		return fmt.Errorf("%w: %s", ErrRoomFull, r.code)
	}
	for _, occupant := range r.occupants() {
		if occupant.Name == p.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}
	}
	if r.players[0] == nil {
		r.players[0] = p
	} else {
		r.players[1] = p
	}
	p.conn.attach(r)
	return nil
}

func (r *Room) startRound(msgType string) {
	r.stopTimers()
	r.round++
	st := &playingState{
		round:    r.round,
		choices:  make(map[string]Choice, len(r.players)),
		deadline: time.Now().Add(r.cfg.AfkTimeout),
	}
	r.state = st
	r.setAfkTimer(st.round)
	logging.Info("round started",
		zap.String("room_code", r.code),
		zap.Int("round", st.round),
		zap.Time("deadline", st.deadline),
	)
	r.broadcaster.Send(r.occupants(), msgType, r.snapshot())
}

func (r *Room) handleChoice(ev choiceEvent) {
	p := r.sender(ev.conn)
	if p == nil {
		ev.conn.sendError(errNotInRoom)
		return
	}
	// A choice during the result pause starts the next round early.
	if _, ok := r.state.(*resultState); ok && r.full() {
		r.startRound(MsgGameUpdate)
	}
	st, ok := r.state.(*playingState)
	if !ok {
		ev.conn.sendError(fmt.Errorf("%w: room is %s", ErrInvalidState, r.state.phase()))
		return
	}
	if _, exist := st.choices[p.Name]; exist {
		ev.conn.sendError(fmt.Errorf("%w: choice already submitted this round", ErrInvalidState))
		return
	}
	st.choices[p.Name] = ev.choice
	logging.Debug("choice accepted",
		zap.String("room_code", r.code),
		zap.String("player_name", p.Name),
		zap.Int("round", st.round),
	)

	snap := r.snapshot()
	snap.PlayerMadeChoice = p.Name
	r.broadcaster.Send(r.occupants(), MsgGameUpdate, snap)

	if len(st.choices) == len(r.occupants()) {
		r.resolve(st, reasonMoves)
	}
}

func (r *Room) handleAfkTimeout(ev afkTimeoutEvent) {
	st, ok := r.state.(*playingState)
	if !ok || st.round != ev.round || !r.full() {
		return
	}
	logging.Info("afk timeout fired",
		zap.String("room_code", r.code),
		zap.Int("round", st.round),
		zap.Int("choices", len(st.choices)),
	)
	r.resolve(st, reasonTimeout)
}

func (r *Room) handleNextRound(ev nextRoundEvent) {
	st, ok := r.state.(*resultState)
	if !ok || st.round != ev.round || !r.full() {
		return
	}
	r.startRound(MsgGameUpdate)
}

// resolve settles the round in st. A player missing from st.choices only
// happens on timeout and loses to a player who did choose.
func (r *Room) resolve(st *playingState, reason string) {
	r.stopTimers()

	a, b := r.players[0], r.players[1]
	choiceA, okA := st.choices[a.Name]
	choiceB, okB := st.choices[b.Name]

	var outcome Outcome
	switch {
	case okA && okB:
		outcome = Resolve(choiceA, choiceB)
	case okA:
		outcome = WIN
	case okB:
		outcome = LOSE
	default:
		outcome = DRAW
	}
	a.record(outcome)
	b.record(outcome.invert())

	result := roundResult{
		round:      st.round,
		names:      [2]string{a.Name, b.Name},
		choices:    make(map[string]Choice, len(st.choices)),
		outcome:    outcome,
		reason:     reason,
		resolvedAt: time.Now(),
	}
	for name, c := range st.choices {
		result.choices[name] = c
	}
	switch outcome {
	case WIN:
		result.winnerName = a.Name
	case LOSE:
		result.winnerName = b.Name
	}
	r.state = &resultState{round: st.round, result: result}

	logging.Info("round resolved",
		zap.String("room_code", r.code),
		zap.Int("round", st.round),
		zap.String("reason", reason),
		zap.String("winner", result.winnerName),
	)

	occupants := r.occupants()
	players := r.snapshot().Players
	r.broadcaster.SendEach(occupants, MsgRoundResult, func(p *player) any {
		resp := result.forPlayer(p.Name)
		resp.Players = players
		return resp
	})
	r.broadcaster.Send(occupants, MsgChatBroadcast, chatResponse{
		SenderName:   systemSenderName,
		SenderAvatar: systemSenderAvatar,
		Text:         result.summary(),
	})
	r.saveRound(result)
	r.setNextRoundTimer(st.round)
}

func (r *Room) handleChat(ev chatEvent) {
	p := r.sender(ev.conn)
	if p == nil {
		ev.conn.sendError(errNotInRoom)
		return
	}
	if strings.TrimSpace(ev.text) == "" {
		ev.conn.sendError(fmt.Errorf("%w: empty chat message", ErrMalformedMessage))
		return
	}
	if r.cfg.MaxChatLength > 0 && utf8.RuneCountInString(ev.text) > r.cfg.MaxChatLength {
		ev.conn.sendError(fmt.Errorf("%w: chat message longer than %d characters", ErrMalformedMessage, r.cfg.MaxChatLength))
		return
	}
	r.broadcaster.Send(r.occupants(), MsgChatBroadcast, chatResponse{
		SenderName:   p.Name,
		SenderAvatar: p.Avatar,
		Text:         ev.text,
	})
}

func (r *Room) handleAvatar(ev avatarEvent) {
	p := r.sender(ev.conn)
	if p == nil {
		ev.conn.sendError(errNotInRoom)
		return
	}
	avatar, err := normalizeAvatar(ev.avatar, r.cfg)
	if err != nil {
		ev.conn.sendError(err)
		return
	}
	p.Avatar = avatar
	r.broadcaster.Send(r.occupants(), MsgAvatarUpdate, avatarResponse{
		Name:   p.Name,
		Avatar: p.Avatar,
	})
}

func (r *Room) handleSticker(ev stickerEvent) {
	p := r.sender(ev.conn)
	if p == nil {
		ev.conn.sendError(errNotInRoom)
		return
	}
	sticker := strings.TrimSpace(ev.sticker)
	if sticker == "" || (r.cfg.MaxChatLength > 0 && utf8.RuneCountInString(sticker) > r.cfg.MaxChatLength) {
		ev.conn.sendError(fmt.Errorf("%w: invalid sticker", ErrMalformedMessage))
		return
	}
	r.broadcaster.Send(r.occupants(), MsgStickerBroadcast, stickerResponse{
		SenderName:   p.Name,
		SenderAvatar: p.Avatar,
		Sticker:      sticker,
	})
}

// handleLeave replies before detach, which may close the room.
func (r *Room) handleLeave(ev leaveEvent) {
	p := r.sender(ev.conn)
	if p == nil {
		ev.reply <- errNotInRoom
		return
	}
	ev.conn.detach(r)
	data, _ := encode(MsgLeftRoom, roomCodeResponse{RoomCode: r.code})
	if err := ev.conn.Send(data); err != nil {
		logging.Debug("failed to confirm leave", zap.String("conn_id", ev.conn.id), zap.Error(err))
	}
	ev.reply <- nil
	r.detach(p, "left")
}

// detach removes p from its slot. The in-flight round, if any, is discarded
// rather than awarded: only the AFK deadline decides a round without moves.
func (r *Room) detach(p *player, reason string) {
	for i := range r.players {
		if r.players[i] == p {
			r.players[i] = nil
		}
	}
	p.conn.detach(r)
	if r.players[0] == nil {
		r.players[0], r.players[1] = r.players[1], nil
	}
	r.stopTimers()

	logging.Info("player left room",
		zap.String("room_code", r.code),
		zap.String("player_name", p.Name),
		zap.String("reason", reason),
		zap.String("phase", string(r.state.phase())),
	)

	if r.players[0] == nil {
		r.close()
		return
	}
	if st, ok := r.state.(*playingState); ok {
		logging.Info("round discarded",
			zap.String("room_code", r.code),
			zap.Int("round", st.round),
		)
	}
	r.state = waitingState{}
	snap := r.snapshot()
	snap.PlayerLeft = p.Name
	r.broadcaster.Send(r.occupants(), MsgPlayerLeft, snap)
}

func (r *Room) shutdown() {
	for _, p := range r.occupants() {
		p.conn.detach(r)
		p.conn.Close()
	}
	r.players = [2]*player{}
	r.close()
}

func (r *Room) close() {
	if r.closed {
		return
	}
	r.closed = true
	r.stopTimers()
	close(r.done)
	if r.closeHandler != nil {
		r.closeHandler(r)
	}
}

func (r *Room) markDropped(p *player) {
	for _, d := range r.dropped {
		if d == p {
			return
		}
	}
	r.dropped = append(r.dropped, p)
}

// processDropped runs the disconnect transition for every player a
// broadcast could not reach.
func (r *Room) processDropped() {
	for len(r.dropped) > 0 && !r.closed {
		p := r.dropped[0]
		r.dropped = r.dropped[1:]
		if r.playerByConn(p.conn) != p {
			continue
		}
		p.conn.Close()
		r.detach(p, "unreachable")
	}
	r.dropped = nil
}

// setAfkTimer arms the round deadline. The timer only posts an event, so a
// late or stale firing is ignored by handleAfkTimeout.
func (r *Room) setAfkTimer(round int) {
	r.afkTimer = time.AfterFunc(r.cfg.AfkTimeout, func() {
		_ = r.post(afkTimeoutEvent{round: round})
	})
}

func (r *Room) setNextRoundTimer(round int) {
	r.nextRoundTimer = time.AfterFunc(r.cfg.ResultDelay, func() {
		_ = r.post(nextRoundEvent{round: round})
	})
}

func (r *Room) stopTimers() {
	if r.afkTimer != nil {
		r.afkTimer.Stop()
		r.afkTimer = nil
	}
	if r.nextRoundTimer != nil {
		r.nextRoundTimer.Stop()
		r.nextRoundTimer = nil
	}
}

func (r *Room) full() bool {
	return r.players[0] != nil && r.players[1] != nil
}

func (r *Room) occupants() []*player {
	occupants := make([]*player, 0, len(r.players))
	for _, p := range r.players {
		if p != nil {
			occupants = append(occupants, p)
		}
	}
	return occupants
}

func (r *Room) playerByConn(c *connection) *player {
	for _, p := range r.players {
		if p != nil && p.conn == c {
			return p
		}
	}
	return nil
}

// sender looks up the player behind c and marks it active.
func (r *Room) sender(c *connection) *player {
	p := r.playerByConn(c)
	if p != nil {
		p.touch()
	}
	return p
}

func (r *Room) snapshot() roomSnapshot {
	snap := roomSnapshot{
		RoomCode:  r.code,
		GameState: r.state.phase(),
		Round:     r.round,
		Players:   []playerView{},
	}
	var choices map[string]Choice
	if st, ok := r.state.(*playingState); ok {
		choices = st.choices
	}
	for _, p := range r.occupants() {
		_, chosen := choices[p.Name]
		snap.Players = append(snap.Players, playerView{
			Name:      p.Name,
			Avatar:    p.Avatar,
			WinStreak: p.WinStreak,
			Stats:     p.Stats,
			HasChosen: chosen,
		})
	}
	snap.ChoiceSubmitted = len(choices) > 0
	return snap
}

func (r roundResult) summary() string {
	if r.winnerName == "" {
		if r.reason == reasonTimeout {
			return "Draw! Nobody chose in time."
		}
		return fmt.Sprintf("Draw! Both played %s", r.choices[r.names[0]].Emoji())
	}
	loser := r.names[0]
	if loser == r.winnerName {
		loser = r.names[1]
	}
	if r.reason == reasonTimeout {
		return fmt.Sprintf("🔥 %s wins! %s ran out of time.", r.winnerName, loser)
	}
	return fmt.Sprintf("🔥 %s wins! (%s beats %s)",
		r.winnerName,
		r.choices[r.winnerName].Emoji(),
		r.choices[loser].Emoji(),
	)
}
