package casregistry

// Usage restricts which binaries accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends usable from wipecert.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends usable behind wipecert-casd.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
