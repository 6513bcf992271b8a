package auth

// State is the authentication state as derived from the stored record and
// any refresh in progress.
type State int

const (
	LoggedOut State = iota
	Valid
	Expired
	Refreshing
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged out"
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Refreshing:
		return "refreshing"
	}
	return "unknown"
}
