package watchtree

// CommandKind enumerates the commands the controlling process can drive
// the engine with.
type CommandKind int

const (
	CmdWatch CommandKind = iota
	CmdUnwatch
	CmdStats
)

// Command is a single parsed line from the input stream, handed to
// Engine.Run over its cmds channel.
type Command struct {
	Kind   CommandKind
	Path   string   // CmdWatch
	Ignore []string // CmdWatch
	Handle Handle   // CmdUnwatch
	Reply  chan<- CommandResult
}

// CommandResult is sent back on Command.Reply, if non-nil, once the
// command has been applied. WatchesLive, LimitReached and RootCount are
// only meaningful for CmdStats; they are populated from within Run's own
// goroutine so a caller never reads the engine's mutable state directly
// from another goroutine.
type CommandResult struct {
	Handle       Handle
	Err          error
	WatchesLive  int
	LimitReached bool
	RootCount    int
}

func (e *Engine) handle(cmd Command) {
	switch cmd.Kind {
	case CmdWatch:
		h, err := e.Watch(cmd.Path, cmd.Ignore)
		if cmd.Reply != nil {
			cmd.Reply <- CommandResult{Handle: h, Err: err}
		}
	case CmdUnwatch:
		e.Unwatch(cmd.Handle)
		if cmd.Reply != nil {
			cmd.Reply <- CommandResult{}
		}
	case CmdStats:
		if cmd.Reply != nil {
			cmd.Reply <- CommandResult{
				WatchesLive:  e.StoreLen(),
				LimitReached: e.LimitReached(),
				RootCount:    len(e.roots.All()),
			}
		}
	}
}
