package timer

import (
	"context"
	"errors"
	"fmt"
)

// Command names a UI event.
type Command string

const (
	CmdSelect          Command = "select"
	CmdToggle          Command = "toggle"
	CmdReset           Command = "reset"
	CmdClose           Command = "close"
	CmdToggleMute      Command = "toggle-mute"
	CmdToggleScreenOff Command = "toggle-screen-off"
	CmdForeground      Command = "foreground"
)

// ErrUnknownCommand is returned by Dispatch for a name not in the table.
var ErrUnknownCommand = errors.New("unknown command")

// Args carries command parameters. SessionID, when set, must match the
// open session (if any) for toggle, reset and close.
type Args struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// Result is the outcome of a dispatched command.
type Result struct {
	Command   Command       `json:"command"`
	Session   Snapshot      `json:"session"`
	Selected  *SelectResult `json:"selected,omitempty"`
	Muted     *bool         `json:"muted,omitempty"`
	ScreenOff *bool         `json:"screen_off,omitempty"`
}

type commandFunc func(c *Controller, ctx context.Context, args Args) (Result, error)

// commands maps UI events to transitions.
var commands = map[Command]commandFunc{
	CmdSelect: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		sel, err := c.Select(ctx, args.Index, args.Text)
		if err != nil {
			return Result{}, err
		}
		return Result{Session: sel.Session, Selected: &sel}, nil
	},
	CmdToggle: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		snap, err := c.Toggle(ctx)
		return Result{Session: snap}, err
	},
	CmdReset: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		snap, err := c.Reset(ctx)
		return Result{Session: snap}, err
	},
	CmdClose: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		return Result{Session: c.Close(ctx)}, nil
	},
	CmdToggleMute: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		muted := c.ToggleMute(ctx)
		return Result{Session: c.Snapshot(), Muted: &muted}, nil
	},
	CmdToggleScreenOff: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		on := c.ToggleScreenOff(ctx)
		return Result{Session: c.Snapshot(), ScreenOff: &on}, nil
	},
	CmdForeground: func(c *Controller, ctx context.Context, args Args) (Result, error) {
		return Result{Session: c.Foreground(ctx)}, nil
	},
}

// sessionScoped lists commands that act on the open session.
var sessionScoped = map[Command]bool{
	CmdToggle: true,
	CmdReset:  true,
	CmdClose:  true,
}

// Commands returns the names in the dispatch table.
func Commands() []Command {
	return []Command{CmdSelect, CmdToggle, CmdReset, CmdClose, CmdToggleMute, CmdToggleScreenOff, CmdForeground}
}

// Dispatch runs a command by name.
func (c *Controller) Dispatch(ctx context.Context, name Command, args Args) (Result, error) {
	fn, ok := commands[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	if sessionScoped[name] && args.SessionID != "" {
		if current := c.SessionID(); current != "" && current != args.SessionID {
			return Result{}, ErrStaleSession
		}
	}
	res, err := fn(c, ctx, args)
	if err != nil {
		return Result{}, err
	}
	res.Command = name
	return res, nil
}
