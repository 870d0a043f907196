package ipc

// Command names accepted by the agent socket.
const (
	CommandStatus       = "status"
	CommandActivate     = "activate"
	CommandSay          = "say"
	CommandModes        = "modes"
	CommandVolumeGet    = "volume.get"
	CommandVolumeSet    = "volume.set"
	CommandVolumeUp     = "volume.up"
	CommandVolumeDown   = "volume.down"
	CommandVolumeMute   = "volume.mute"
	CommandVolumeUnmute = "volume.unmute"
	CommandVolumeToggle = "volume.toggle"
	CommandShutdown     = "shutdown"
)

type Request struct {
	Command    string `json:"command"`
	Mode       string `json:"mode,omitempty"`
	Text       string `json:"text,omitempty"`
	Level      *int   `json:"level,omitempty"`
	Smooth     bool   `json:"smooth,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

type Response struct {
	OK      bool     `json:"ok"`
	State   string   `json:"state,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Volume  *int     `json:"volume,omitempty"`
	Muted   *bool    `json:"muted,omitempty"`
	Modes   []string `json:"modes,omitempty"`
	Version string   `json:"version,omitempty"`
}
