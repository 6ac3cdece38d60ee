package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session layer.
	ErrTeamRejected = "E_TEAM_REJECTED"
	ErrBadObs       = "E_BAD_OBS"
	ErrLateAct      = "E_LATE_ACT"
	ErrBadCommand   = "E_BAD_COMMAND"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrTeamRejected:    {},
	ErrBadObs:          {},
	ErrLateAct:         {},
	ErrBadCommand:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
