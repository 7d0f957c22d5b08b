package ipc

type CommandType string

const (
	CommandStop     CommandType = "stop"
	CommandNext     CommandType = "next"
	CommandPrevious CommandType = "previous"
	CommandReload   CommandType = "reload"
	CommandStatus   CommandType = "status"
)

// Command is the wire format for daemon control. Args[0], when present,
// scopes the command to a single display.
type Command struct {
	Type CommandType `json:"type"`
	Args []string    `json:"args"`
}

// ManagerInterface is what the socket server needs from the daemon.
type ManagerInterface interface {
	Displays() map[string]DisplayStatus
	EnqueueCommand(Command)
}

type DisplayStatus struct {
	Wallpaper    string `json:"wallpaper"`
	NextRotation string `json:"next_rotation,omitempty"`
}

type StatusResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Version  string                   `json:"version"`
	PID      int                      `json:"pid"`
	Socket   string                   `json:"socket"`
	Config   string                   `json:"config"`
	Displays map[string]DisplayStatus `json:"displays"`
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}
