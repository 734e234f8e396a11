package params

// Warning is a bit in the status flags.
type Warning uint

// Warnings, higher bits have higher priority. The top 3 bits are critical
// and can not be suppressed.
const (
	WarningConnected     Warning = 0
	WarningStatus1       Warning = 1
	WarningModelMismatch Warning = 2
	WarningCritical1     Warning = 5
	WarningCritical2     Warning = 6
	WarningCritical3     Warning = 7
)

const criticalWarnings byte = 0xE0

var warningMessages = [8]string{
	WarningModelMismatch: "Model Mismatch",
}

// SetWarningFlag raises or clears w.
func (p *Protocol) SetWarningFlag(w Warning, on bool) {
	if on {
		p.warnings |= 1 << w
	} else {
		p.warnings &^= 1 << w
	}
}

// SuppressWarnings hides the warnings active now. Critical warnings stay
// visible.
func (p *Protocol) SuppressWarnings() {
	p.suppressed = ^p.warnings | criticalWarnings
}

// WarningFlags returns the warnings not suppressed.
func (p *Protocol) WarningFlags() byte {
	return p.warnings & p.suppressed
}

// WarningMessage returns the message of the highest active warning.
func (p *Protocol) WarningMessage() string {
	flags := p.WarningFlags()
	for i := len(warningMessages) - 1; i >= 0; i-- {
		if flags&(1<<uint(i)) != 0 {
			return warningMessages[i]
		}
	}
	return ""
}
