package model

// Mode is a Storage Element's fixed operating mode for its process
// lifetime (§3.4, §4.8). It is read from configuration at startup and is
// never mutated via the API.
type Mode string

const (
	ModeEdit Mode = "edit"
	ModeRW   Mode = "rw"
	ModeRO   Mode = "ro"
	ModeAR   Mode = "ar"
)

// Valid reports whether m is one of the four recognized modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeEdit, ModeRW, ModeRO, ModeAR:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether moving from 'from' to 'to' across a
// restart is legal (§4.8): staying in the same mode, or one forward step
// edit→rw, rw→ro, ro→ar. Any other direction, including skipping a step,
// is a configuration error.
func ValidTransition(from, to Mode) bool {
	switch {
	case from == to:
		return true
	case from == ModeEdit && to == ModeRW:
		return true
	case from == ModeRW && to == ModeRO:
		return true
	case from == ModeRO && to == ModeAR:
		return true
	default:
		return false
	}
}

// StorageType selects the Storage Element's backend (§3.4).
type StorageType string

const (
	StorageLocal StorageType = "local"
	StorageS3    StorageType = "s3"
)
