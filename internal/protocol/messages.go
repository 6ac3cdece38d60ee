package protocol

// HELLO (client -> host)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TeamName        string `json:"team_name"`
	Strategy        string `json:"strategy,omitempty"`
	RunID           string `json:"run_id,omitempty"`
}

// WELCOME (host -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TeamID          string `json:"team_id"`
	FishCount       int    `json:"fish_count"`
	CycleMs         int    `json:"cycle_ms"`
	TotalCycles     int    `json:"total_cycles"`
}

// END (host -> client)
type EndMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Reason          string `json:"reason"`
}

// ERROR (host -> client). Not fatal by itself; the host follows up with END when it is.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewHello(team, strategy, runID string) HelloMsg {
	return HelloMsg{Type: TypeHello, ProtocolVersion: Version, TeamName: team, Strategy: strategy, RunID: runID}
}
