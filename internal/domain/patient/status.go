package patient

import "time"

// DefaultActionWindow is how close to surgery unsigned consents start
// requiring action.
const DefaultActionWindow = 48 * time.Hour

var epoch = time.Unix(0, 0).UTC()

// Age is the whole-year age at now. The elapsed time is laid on the Unix
// epoch and its year read back, so the result can be off by one in the days
// around a birthday.
func Age(dob, now time.Time) int {
	years := epoch.Add(now.Sub(dob)).Year() - 1970
	if years < 0 {
		return -years
	}
	return years
}

// IsArchived reports whether the surgery date has passed.
func IsArchived(surgeryAt *time.Time, now time.Time) bool {
	return surgeryAt != nil && surgeryAt.Before(now)
}

// StateOf derives the consent state of one kind.
func StateOf(p *Patient, t ConsentType) ConsentState {
	id, image, signedAt := p.consentFields(t)
	switch {
	case id == nil:
		return ConsentUnassigned
	case image != nil && signedAt != nil:
		return ConsentSigned
	default:
		return ConsentAssigned
	}
}

// IsActionRequired is true for an upcoming surgery inside window whose
// surgical consent is unsigned, or whose attached anesthesia consent is
// unsigned. A missing anesthesia consent alone does not count.
func IsActionRequired(p *Patient, now time.Time, window time.Duration) bool {
	if p.SurgeryAt == nil || IsArchived(p.SurgeryAt, now) {
		return false
	}
	if p.SurgeryAt.After(now.Add(window)) {
		return false
	}
	if StateOf(p, ConsentSurgical) != ConsentSigned {
		return true
	}
	return StateOf(p, ConsentAnesthesia) == ConsentAssigned
}

// Deriver fills the derived fields of a patient on read.
type Deriver struct {
	Window time.Duration
	Now    func() time.Time
}

func (d Deriver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deriver) Apply(p *Patient) {
	if p == nil {
		return
	}
	now := d.now()
	window := d.Window
	if window <= 0 {
		window = DefaultActionWindow
	}
	p.Age = Age(p.DateOfBirth, now)
	p.IsArchived = IsArchived(p.SurgeryAt, now)
	p.IsActionRequired = IsActionRequired(p, now, window)
	p.SurgicalConsentState = StateOf(p, ConsentSurgical)
	p.AnesthesiaConsentState = StateOf(p, ConsentAnesthesia)
	if p.MedicationsToSuspend == nil {
		p.MedicationsToSuspend = []string{}
	}
}
