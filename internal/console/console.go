// Package console implements the operator's line-oriented command
// interpreter: tokenization with quoted spans, an admin-level-gated
// command table, and a bounded history, read from an interactive input
// stream that can be interrupted promptly on shutdown.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"mazegame/server/internal/game"
	"mazegame/server/internal/maze"
	"mazegame/server/internal/registry"
)

// AdminLevel is the operator privilege tier a console command requires.
type AdminLevel int

const (
	LevelNone AdminLevel = iota
	LevelModerator
	LevelAdmin
	LevelSuperAdmin
)

const historyCap = 1000

// Kicker closes a player's bound connection, used by the kick command.
type Kicker interface {
	Kick(playerID string) bool
}

// SystemBroadcaster sends an operator-originated chat line to every
// connection, used by the system command.
type SystemBroadcaster interface {
	BroadcastSystemMessage(message string)
}

// Result is the outcome of one executed command.
type Result struct {
	Success bool
	Message string
}

// Console reads operator commands from r and executes them against the
// engine, registry, and dispatcher it was built with.
type Console struct {
	engine   *game.Engine
	registry *registry.Registry
	kicker   Kicker
	bcast    SystemBroadcaster
	log      *logrus.Entry

	mu      sync.Mutex
	history []string
	admins  map[string]AdminLevel

	handlers map[string]func([]string, string) Result
	minLevel map[string]AdminLevel
}

// New creates a console bound to eng/reg and the dispatcher-side
// collaborators used by kick and system. The console itself is a
// privileged caller of AdminLevel SuperAdmin for any executorId of
// "console".
func New(eng *game.Engine, reg *registry.Registry, kicker Kicker, bcast SystemBroadcaster, log *logrus.Entry) *Console {
	c := &Console{
		engine:   eng,
		registry: reg,
		kicker:   kicker,
		bcast:    bcast,
		log:      log,
		admins:   make(map[string]AdminLevel),
		handlers: make(map[string]func([]string, string) Result),
		minLevel: make(map[string]AdminLevel),
	}
	c.registerCommands()
	return c
}

func (c *Console) registerCommands() {
	register := func(name string, level AdminLevel, fn func([]string, string) Result) {
		c.handlers[name] = fn
		c.minLevel[name] = level
	}
	register("give", LevelAdmin, c.cmdGive)
	register("tp", LevelAdmin, c.cmdTeleport)
	register("kick", LevelModerator, c.cmdKick)
	register("kill", LevelModerator, c.cmdKill)
	register("clear", LevelSuperAdmin, c.cmdClear)
	register("coin", LevelAdmin, c.cmdCoin)
	register("system", LevelModerator, c.cmdSystem)
	register("admin", LevelSuperAdmin, c.cmdAdmin)
	register("players", LevelModerator, c.cmdPlayers)
	register("restart", LevelSuperAdmin, c.cmdRestart)
	register("help", LevelNone, c.cmdHelp)
}

// levelOf returns the admin level on record for executorId. "console"
// defaults to super-admin per the operator console's resolved open
// question on default privilege.
func (c *Console) levelOf(executorID string) AdminLevel {
	if executorID == "console" {
		return LevelSuperAdmin
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admins[executorID]
}

// Execute tokenizes and runs one command line on behalf of executorId,
// appending it to the bounded history regardless of outcome.
func (c *Console) Execute(line, executorID string) Result {
	c.appendHistory(line)

	tokens := tokenize(line)
	if len(tokens) == 0 {
		return Result{Success: false, Message: "empty command"}
	}
	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	handler, ok := c.handlers[name]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("unknown command %q", name)}
	}
	if c.levelOf(executorID) < c.minLevel[name] {
		return Result{Success: false, Message: "insufficient privilege"}
	}
	return handler(args, executorID)
}

func (c *Console) appendHistory(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, line)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
}

// History returns a copy of the bounded command history.
func (c *Console) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

// tokenize splits a command line on whitespace, treating a double-quoted
// span as one token with the quotes stripped.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func parseItemKind(s string) (game.ItemKind, bool) {
	switch strings.ToLower(s) {
	case "speed_potion", "speedpotion":
		return game.SpeedPotion, true
	case "compass":
		return game.Compass, true
	case "hammer":
		return game.Hammer, true
	case "kill_sword", "sword", "killsword":
		return game.KillSword, true
	case "slow_trap", "slowtrap":
		return game.SlowTrap, true
	case "swap_item", "swapitem":
		return game.SwapItem, true
	case "coin":
		return game.CoinItem, true
	default:
		return "", false
	}
}

func (c *Console) cmdGive(args []string, _ string) Result {
	if len(args) < 2 {
		return Result{Success: false, Message: "usage: give <playerId> <item> [count]"}
	}
	kind, ok := parseItemKind(args[1])
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("unknown item %q", args[1])}
	}
	count := 1
	if len(args) >= 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			return Result{Success: false, Message: "count must be a positive integer"}
		}
		count = n
	}
	if kind == game.CoinItem {
		if !c.registry.AddCoins(args[0], count) {
			return Result{Success: false, Message: "player not found"}
		}
		return Result{Success: true, Message: fmt.Sprintf("gave %d coins to %s", count, args[0])}
	}
	if err := c.engine.Give(args[0], kind, count); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("gave %dx %s to %s", count, args[1], args[0])}
}

func (c *Console) cmdTeleport(args []string, _ string) Result {
	if len(args) != 4 {
		return Result{Success: false, Message: "usage: tp <playerId> <x> <y> <z>"}
	}
	x, errX := strconv.Atoi(args[1])
	y, errY := strconv.Atoi(args[2])
	z, errZ := strconv.Atoi(args[3])
	if errX != nil || errY != nil || errZ != nil {
		return Result{Success: false, Message: "x, y, z must be integers"}
	}
	if err := c.engine.Teleport(args[0], maze.Pos{X: x, Y: y, Z: z}); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("teleported %s to (%d,%d,%d)", args[0], x, y, z)}
}

func (c *Console) cmdKick(args []string, _ string) Result {
	if len(args) < 1 {
		return Result{Success: false, Message: "usage: kick <playerId> [reason]"}
	}
	c.registry.Logout(args[0])
	if c.kicker != nil && !c.kicker.Kick(args[0]) {
		return Result{Success: false, Message: "player not connected"}
	}
	return Result{Success: true, Message: fmt.Sprintf("kicked %s", args[0])}
}

func (c *Console) cmdKill(args []string, _ string) Result {
	if len(args) != 1 {
		return Result{Success: false, Message: "usage: kill <playerId>"}
	}
	if err := c.engine.Kill(args[0]); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("killed %s", args[0])}
}

func (c *Console) cmdClear(_ []string, _ string) Result {
	c.engine.Reset()
	return Result{Success: true, Message: "match state reset"}
}

func (c *Console) cmdCoin(args []string, _ string) Result {
	if len(args) != 2 {
		return Result{Success: false, Message: "usage: coin <playerId> <amount>"}
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return Result{Success: false, Message: "amount must be an integer"}
	}
	if err := c.engine.SetCoins(args[0], amount); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	c.registry.SetTotalCoins(args[0], amount)
	return Result{Success: true, Message: fmt.Sprintf("set %s's coins to %d", args[0], amount)}
}

func (c *Console) cmdSystem(args []string, _ string) Result {
	if len(args) == 0 {
		return Result{Success: false, Message: "usage: system <message>"}
	}
	message := strings.Join(args, " ")
	if c.bcast != nil {
		c.bcast.BroadcastSystemMessage(message)
	}
	return Result{Success: true, Message: "broadcast sent"}
}

func (c *Console) cmdAdmin(args []string, _ string) Result {
	if len(args) != 2 {
		return Result{Success: false, Message: "usage: admin <playerId> <level 0..3>"}
	}
	level, err := strconv.Atoi(args[1])
	if err != nil || level < 0 || level > 3 {
		return Result{Success: false, Message: "level must be 0..3"}
	}
	c.mu.Lock()
	c.admins[args[0]] = AdminLevel(level)
	c.mu.Unlock()
	return Result{Success: true, Message: fmt.Sprintf("set %s's admin level to %d", args[0], level)}
}

func (c *Console) cmdPlayers(_ []string, _ string) Result {
	online := c.registry.Online()
	return Result{Success: true, Message: strings.Join(online, ", ")}
}

func (c *Console) cmdRestart(args []string, executorID string) Result {
	return c.cmdClear(args, executorID)
}

func (c *Console) cmdHelp(_ []string, _ string) Result {
	return Result{Success: true, Message: strings.Join([]string{
		"give <playerId> <item> [count]",
		"tp <playerId> <x> <y> <z>",
		"kick <playerId> [reason]",
		"kill <playerId>",
		"clear",
		"coin <playerId> <amount>",
		"system <message>",
		"admin <playerId> <level 0..3>",
		"players",
		"restart",
		"help",
	}, "\n")}
}

// Run reads lines from r until EOF, a shutdown signal, or a "quit"/"exit"
// line, executing each as a console command. prompt and writeLine let the
// caller re-draw the prompt above asynchronous log lines per §5. Run
// returns when the input stream or shutdown channel closes.
func (c *Console) Run(r io.Reader, shutdown <-chan struct{}, prompt func(), writeLine func(string)) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	prompt()
	for {
		select {
		case <-shutdown:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "quit" || trimmed == "exit" {
				return
			}
			if trimmed != "" {
				res := c.Execute(trimmed, "console")
				writeLine(formatResult(res))
			}
			prompt()
		case <-time.After(50 * time.Millisecond):
			// Re-check shutdown promptly even while idle, per the ≤50ms
			// console-read cancellation bound in §5.
		}
	}
}

func formatResult(r Result) string {
	if r.Success {
		return r.Message
	}
	return "error: " + r.Message
}
