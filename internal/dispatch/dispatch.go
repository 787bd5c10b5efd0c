// Package dispatch binds connections to authenticated players, translates
// inbound frames into game-engine operations, and fans outbound events
// back out to the right connections (C6 session/dispatch, C7 broadcaster).
package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"mazegame/server/internal/game"
	"mazegame/server/internal/maze"
	"mazegame/server/internal/proto"
	"mazegame/server/internal/registry"
	"mazegame/server/internal/wsconn"
)

const chatMessageMaxCodepoints = 200

// ChatLog receives every broadcast chat line for append-only persistence.
type ChatLog interface {
	Append(sender, message string) error
}

// session is the dispatcher's record of one connection and its bound
// player, if any. The player's last validated position lives in the
// engine, which ApplyMove checks client-submitted moves against.
type session struct {
	conn     *wsconn.Conn
	playerID string // empty until auth succeeds
	bound    bool
}

// Dispatcher is C6+C7: it implements wsconn.Handler and owns the
// connection table (weak references into the registry and engine).
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[uint64]*session
	byPlayer map[string]uint64 // playerId -> connId, the session index

	registry *registry.Registry
	engine   *game.Engine
	chatLog  ChatLog
	log      *logrus.Entry
}

// New creates a dispatcher bound to reg and eng. chatLog may be nil, in
// which case chat messages are broadcast but not persisted.
func New(reg *registry.Registry, eng *game.Engine, chatLog ChatLog, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		sessions: make(map[uint64]*session),
		byPlayer: make(map[string]uint64),
		registry: reg,
		engine:   eng,
		chatLog:  chatLog,
		log:      log,
	}
}

// HandleOpen registers a freshly accepted, not-yet-authenticated connection.
func (d *Dispatcher) HandleOpen(c *wsconn.Conn) {
	d.mu.Lock()
	d.sessions[c.ID] = &session{conn: c}
	d.mu.Unlock()
}

// HandleClose logs the bound player out, removes their runtime state, and
// broadcasts player_leave, per the §4.6 disconnection contract.
func (d *Dispatcher) HandleClose(c *wsconn.Conn) {
	d.mu.Lock()
	s, ok := d.sessions[c.ID]
	delete(d.sessions, c.ID)
	var playerID string
	if ok && s.bound {
		playerID = s.playerID
		delete(d.byPlayer, playerID)
	}
	d.mu.Unlock()

	if playerID == "" {
		return
	}
	d.registry.Logout(playerID)
	d.engine.RemovePlayer(playerID)
	d.BroadcastExcept(c.ID, proto.TypePlayerLeave, proto.PlayerLeavePayload{PlayerID: playerID})
}

// HandleMessage decodes raw, routes it by type, and replies or broadcasts
// per the §4.6 contract. Decode or handler errors become an `error` frame
// addressed to the offending connection rather than a panic or a dropped
// connection, except where the contract calls for a close.
func (d *Dispatcher) HandleMessage(c *wsconn.Conn, raw []byte) {
	env, err := proto.Decode(raw)
	if err != nil {
		d.sendError(c, string(game.ErrInvalidMove), "malformed message")
		return
	}

	s := d.sessionFor(c.ID)
	if s == nil {
		return
	}

	switch env.Type {
	case proto.TypeAuth:
		d.handleAuth(c, s, env)
	case proto.TypeMove:
		d.handleMove(s, env)
	case proto.TypePurchaseItem:
		d.handlePurchaseItem(c, s, env)
	case proto.TypeUseItem:
		d.handleUseItem(c, s, env)
	case proto.TypeChatMessage:
		d.handleChatMessage(s, env)
	case proto.TypePing:
		d.handlePing(c, env)
	default:
		d.sendError(c, "PROTOCOL_ERROR", fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (d *Dispatcher) sessionFor(connID uint64) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[connID]
}

func (d *Dispatcher) handleAuth(c *wsconn.Conn, s *session, env proto.Envelope) {
	var payload proto.AuthPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		d.sendAuthFailed(c, "malformed auth payload")
		c.Close()
		return
	}

	playerID := payload.PlayerID
	if playerID == "" || !d.registry.IsValid(playerID) {
		fingerprint := fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
			byte(c.ID>>40), byte(c.ID>>32), byte(c.ID>>24), byte(c.ID>>16), byte(c.ID>>8), byte(c.ID))
		playerID = d.registry.RegisterOrResolve(fingerprint, payload.PlayerName)
	}

	if !d.registry.Login(playerID) {
		d.sendAuthFailed(c, "registry rejected login")
		c.Close()
		return
	}

	// Supersede any prior connection bound to the same player.
	d.mu.Lock()
	if priorConnID, bound := d.byPlayer[playerID]; bound {
		if prior, ok := d.sessions[priorConnID]; ok {
			prior.conn.CloseWithCode(websocket.ClosePolicyViolation)
		}
	}
	s.playerID = playerID
	s.bound = true
	d.byPlayer[playerID] = c.ID
	d.mu.Unlock()

	// Ignore the error: a reconnecting player already has runtime state,
	// and AddPlayer's duplicate-add failure just means there's nothing to
	// (re)create here.
	d.engine.AddPlayer(playerID)

	token := fmt.Sprintf("session_%d", time.Now().Unix())
	c.SendJSON(wrap(proto.TypeAuthSuccess, proto.AuthSuccessPayload{PlayerID: playerID, Token: token}))
	c.SendJSON(wrap(proto.TypeMazeData, mazeDataPayload(d.engine.Maze())))
	d.sendPlayerData(c, playerID)
	d.BroadcastExcept(c.ID, proto.TypePlayerJoin, proto.PlayerJoinPayload{PlayerID: playerID})
}

func (d *Dispatcher) sendAuthFailed(c *wsconn.Conn, reason string) {
	c.SendJSON(wrap(proto.TypeAuthFailed, proto.AuthFailedPayload{Reason: reason}))
}

func (d *Dispatcher) sendPlayerData(c *wsconn.Conn, playerID string) {
	snap, ok := d.engine.Snapshot(playerID)
	if !ok {
		return
	}
	c.SendJSON(wrap(proto.TypePlayerData, snapshotToPlayerData(snap)))
}

func snapshotToPlayerData(snap game.PlayerState) proto.PlayerDataPayload {
	inv := make(map[string]int, len(snap.Inventory))
	for kind, n := range snap.Inventory {
		inv[proto.ItemKindToWire(string(kind))] = n
	}
	return proto.PlayerDataPayload{
		PlayerID:    snap.PlayerID,
		Position:    [3]float64{snap.Pos.X, snap.Pos.Y, snap.Pos.Z},
		Coins:       snap.Coins,
		Inventory:   inv,
		HasCompass:  snap.HasCompass,
		ReachedGoal: snap.ReachedGoal,
		FinishRank:  snap.FinishRank,
	}
}

func (d *Dispatcher) handleMove(s *session, env proto.Envelope) {
	if !s.bound {
		return
	}
	var payload proto.MovePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}

	pos := game.Vec3{X: payload.Position[0], Y: payload.Position[1], Z: payload.Position[2]}
	result, err := d.engine.ApplyMove(s.playerID, pos, payload.Rotation)
	if err != nil {
		// Authority rejected the delta: re-send the last validated state
		// so the client can reconcile, rather than trusting its submission.
		d.sendPlayerData(s.conn, s.playerID)
		return
	}

	d.BroadcastExcept(s.conn.ID, proto.TypePlayerMoved, proto.PlayerMovedPayload{
		PlayerID: s.playerID,
		Position: payload.Position,
		Rotation: payload.Rotation,
	})

	if result.CoinCollected {
		d.Broadcast(proto.TypeGameEvent, proto.GameEventPayload{
			EventType: "coin_collected",
			PlayerID:  s.playerID,
			CoinIndex: result.CoinIndex,
		})
	}

	if result.ReachedGoal {
		snap, ok := d.engine.Snapshot(s.playerID)
		if ok {
			d.registry.MarkWon(s.playerID)
			d.registry.SetTotalCoins(s.playerID, snap.Coins)
		}
		d.Broadcast(proto.TypeGameEvent, proto.GameEventPayload{
			EventType:  "player_reached_goal",
			PlayerID:   s.playerID,
			FinishRank: result.FinishRank,
			Bonus:      result.Bonus,
		})
	}
}

func (d *Dispatcher) handlePurchaseItem(c *wsconn.Conn, s *session, env proto.Envelope) {
	if !s.bound {
		return
	}
	var payload proto.PurchaseItemPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		d.sendError(c, "PROTOCOL_ERROR", "malformed purchase_item payload")
		return
	}
	kind, ok := proto.ItemKindFromWire(payload.ItemType)
	if !ok {
		d.sendError(c, string(game.ErrInvalidTarget), "unknown item type")
		return
	}
	if err := d.engine.PurchaseItem(s.playerID, game.ItemKind(kind)); err != nil {
		d.sendEngineError(c, err)
		return
	}
	d.sendGameState(c, s.playerID)
}

func (d *Dispatcher) handleUseItem(c *wsconn.Conn, s *session, env proto.Envelope) {
	if !s.bound {
		return
	}
	var payload proto.UseItemPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		d.sendError(c, "PROTOCOL_ERROR", "malformed use_item payload")
		return
	}
	kind, ok := proto.ItemKindFromWire(payload.ItemType)
	if !ok {
		d.sendError(c, string(game.ErrInvalidTarget), "unknown item type")
		return
	}
	var targetCell *maze.Pos
	if payload.TargetPosition != nil {
		tp := payload.TargetPosition
		targetCell = &maze.Pos{X: int(tp[0]), Y: int(tp[1]), Z: int(tp[2])}
	}
	if err := d.engine.UseItem(s.playerID, game.ItemKind(kind), payload.TargetPlayerID, targetCell); err != nil {
		d.sendEngineError(c, err)
		return
	}
	d.Broadcast(proto.TypeItemEffect, proto.ItemEffectPayload{
		PlayerID:       s.playerID,
		ItemType:       payload.ItemType,
		TargetPlayerID: payload.TargetPlayerID,
	})
}

func (d *Dispatcher) sendGameState(c *wsconn.Conn, playerID string) {
	snap, ok := d.engine.Snapshot(playerID)
	if !ok {
		return
	}
	inv := make(map[string]int, len(snap.Inventory))
	for kind, n := range snap.Inventory {
		inv[proto.ItemKindToWire(string(kind))] = n
	}
	c.SendJSON(wrap(proto.TypeGameState, proto.GameStatePayload{
		Coins:          snap.Coins,
		Inventory:      inv,
		RemainingCoins: d.engine.Maze().Coins.Remaining(),
		FinishedCount:  d.engine.FinishedCount(),
	}))
}

func (d *Dispatcher) handleChatMessage(s *session, env proto.Envelope) {
	if !s.bound {
		return
	}
	var payload proto.ChatMessagePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	msg := capCodepoints(payload.Message, chatMessageMaxCodepoints)
	if d.chatLog != nil {
		d.chatLog.Append(s.playerID, msg)
	}
	d.Broadcast(proto.TypeChatMessage, proto.ChatMessageOutPayload{Sender: s.playerID, Message: msg})
}

func capCodepoints(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func (d *Dispatcher) handlePing(c *wsconn.Conn, env proto.Envelope) {
	var payload proto.PingPayload
	_ = json.Unmarshal(env.Data, &payload)
	c.SendJSON(wrap(proto.TypePong, proto.PongPayload{Timestamp: payload.Timestamp}))
}

func (d *Dispatcher) sendEngineError(c *wsconn.Conn, err error) {
	if gameErr, ok := err.(*game.Error); ok {
		d.sendError(c, string(gameErr.Kind), gameErr.Msg)
		return
	}
	d.sendError(c, "INTERNAL", err.Error())
}

func (d *Dispatcher) sendError(c *wsconn.Conn, code, message string) {
	c.SendJSON(wrap(proto.TypeError, proto.ErrorPayload{Code: code, Message: message}))
}

// --- broadcaster (C7) ----------------------------------------------------

// Send enqueues msg for a single connection by id, if it is still tracked.
func (d *Dispatcher) Send(connID uint64, typ proto.Type, payload interface{}) {
	d.mu.Lock()
	s, ok := d.sessions[connID]
	d.mu.Unlock()
	if !ok {
		return
	}
	s.conn.SendJSON(wrap(typ, payload))
}

// Broadcast enqueues msg for every tracked connection.
func (d *Dispatcher) Broadcast(typ proto.Type, payload interface{}) {
	msg := wrap(typ, payload)
	d.mu.Lock()
	conns := make([]*wsconn.Conn, 0, len(d.sessions))
	for _, s := range d.sessions {
		conns = append(conns, s.conn)
	}
	d.mu.Unlock()
	for _, c := range conns {
		c.SendJSON(msg)
	}
}

// BroadcastExcept enqueues msg for every tracked connection other than
// excludeConnID.
func (d *Dispatcher) BroadcastExcept(excludeConnID uint64, typ proto.Type, payload interface{}) {
	msg := wrap(typ, payload)
	d.mu.Lock()
	conns := make([]*wsconn.Conn, 0, len(d.sessions))
	for id, s := range d.sessions {
		if id == excludeConnID {
			continue
		}
		conns = append(conns, s.conn)
	}
	d.mu.Unlock()
	for _, c := range conns {
		c.SendJSON(msg)
	}
}

// BroadcastSystemMessage sends an operator-originated chat line to every
// connection, used by the console's system command.
func (d *Dispatcher) BroadcastSystemMessage(message string) {
	if d.chatLog != nil {
		d.chatLog.Append("SYSTEM", message)
	}
	d.Broadcast(proto.TypeChatMessage, proto.ChatMessageOutPayload{Sender: "SYSTEM", Message: message})
}

// Kick closes playerId's bound connection, if any, and reports whether one
// was found. The resulting HandleClose callback performs the normal
// logout/remove/player_leave sequence.
func (d *Dispatcher) Kick(playerID string) bool {
	d.mu.Lock()
	connID, ok := d.byPlayer[playerID]
	var c *wsconn.Conn
	if ok {
		if s, ok2 := d.sessions[connID]; ok2 {
			c = s.conn
		}
	}
	d.mu.Unlock()
	if c == nil {
		return false
	}
	c.CloseWithCode(websocket.CloseNormalClosure)
	return true
}

// BroadcastMazeData sends the static maze layout to every connection. A
// newly authenticated player gets the layout from handleAuth directly.
func (d *Dispatcher) BroadcastMazeData(m *maze.Maze) {
	d.Broadcast(proto.TypeMazeData, mazeDataPayload(m))
}

func mazeDataPayload(m *maze.Maze) map[string]interface{} {
	coins := m.Coins.Positions()
	coinOut := make([][3]int, len(coins))
	for i, p := range coins {
		coinOut[i] = [3]int{p.X, p.Y, p.Z}
	}
	return map[string]interface{}{
		"width":  m.Grid.Width,
		"height": m.Grid.Height,
		"layers": m.Grid.Layers,
		"start":  [3]int{m.Start.X, m.Start.Y, m.Start.Z},
		"end":    [3]int{m.End.X, m.End.Y, m.End.Z},
		"coins":  coinOut,
	}
}

// wrap builds the canonical outbound envelope for typ/payload.
func wrap(typ proto.Type, payload interface{}) proto.Envelope {
	env, err := proto.Encode(typ, time.Now().UnixMilli(), payload)
	if err != nil {
		return proto.Envelope{Type: typ, Timestamp: time.Now().UnixMilli()}
	}
	return env
}
