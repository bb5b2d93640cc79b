package patient

import (
	"context"
	"crypto/subtle"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/professional"
	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
	"github.com/preop/preop/internal/platform/notification"
)

// FormLookup is the part of the consent form catalogue patients need.
type FormLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*consentform.ConsentForm, error)
	Content(ctx context.Context, id uuid.UUID) (*consentform.ConsentForm, error)
}

// ProfessionalLookup resolves surgeons and anesthesiologists.
type ProfessionalLookup interface {
	GetWithRole(ctx context.Context, id uuid.UUID, role professional.Role) (*professional.Professional, error)
}

// Options configures Service. Zero values fall back to defaults.
type Options struct {
	ActionWindow  time.Duration
	PublicBaseURL string
	Now           func() time.Time
	// Mailer is nil when SMTP is not configured.
	Mailer    notification.EmailSender
	Templates *notification.TemplateEngine
	Logger    zerolog.Logger
}

type Service struct {
	repo      Repository
	forms     FormLookup
	profs     ProfessionalLookup
	tokens    *auth.TokenIssuer
	mailer    notification.EmailSender
	templates *notification.TemplateEngine
	deriver   Deriver
	baseURL   string
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, forms FormLookup, profs ProfessionalLookup, tokens *auth.TokenIssuer, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	templates := opts.Templates
	if templates == nil {
		templates = notification.NewTemplateEngine()
	}
	return &Service{
		repo:      repo,
		forms:     forms,
		profs:     profs,
		tokens:    tokens,
		mailer:    opts.Mailer,
		templates: templates,
		deriver:   Deriver{Window: opts.ActionWindow, Now: now},
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		now:       now,
		logger:    opts.Logger,
	}
}

// actingID resolves the professional performing an operation. Professionals
// act as themselves; admins must name one.
func actingID(caller auth.Principal, role string, onBehalf *uuid.UUID, field string) (uuid.UUID, error) {
	if caller.HasRole(role) {
		id, err := uuid.Parse(caller.ID)
		if err != nil {
			return uuid.Nil, apperr.Auth("invalid caller identity")
		}
		return id, nil
	}
	if caller.IsAdmin() {
		if onBehalf == nil || *onBehalf == uuid.Nil {
			return uuid.Nil, apperr.Validation("%s is required", field)
		}
		return *onBehalf, nil
	}
	return uuid.Nil, apperr.Forbidden("required role: %s", role)
}

func (s *Service) requireForm(ctx context.Context, id uuid.UUID, want consentform.Type) error {
	f, err := s.forms.Get(ctx, id)
	if err != nil {
		return err
	}
	if f.Type != want {
		return apperr.Validation("consent form %s is %s, expected %s", id, f.Type, want)
	}
	return nil
}

// CreatePatient registers a patient with a surgical consent, which moves the
// surgical consent from Unassigned to Assigned.
func (s *Service) CreatePatient(ctx context.Context, caller auth.Principal, in CreateInput) (*Patient, error) {
	surgeonID, err := actingID(caller, auth.RoleSurgeon, in.SurgeonID, "surgeon_id")
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	cedula := strings.TrimSpace(in.Cedula)
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if email == "" || cedula == "" || first == "" || last == "" {
		return nil, apperr.Validation("email, cedula, first_name and last_name are required")
	}
	if !validSex(in.Sex) {
		return nil, apperr.Validation("sex must be one of %s, %s, %s", SexMale, SexFemale, SexOther)
	}
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(in.DateOfBirth))
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD")
	}
	if dob.After(s.now()) {
		return nil, apperr.Validation("date_of_birth is in the future")
	}
	if in.ConsentFormID == uuid.Nil {
		return nil, apperr.Validation("consent_form_id is required")
	}

	if _, err := s.profs.GetWithRole(ctx, surgeonID, professional.RoleSurgeon); err != nil {
		return nil, err
	}
	if err := s.requireForm(ctx, in.ConsentFormID, consentform.TypeSurgical); err != nil {
		return nil, err
	}

	formID := in.ConsentFormID
	p := &Patient{
		Email:             email,
		Cedula:            cedula,
		FirstName:         first,
		LastName:          last,
		DateOfBirth:       dob,
		Sex:               in.Sex,
		SurgicalProcedure: in.SurgicalProcedure,
		SurgeryAt:         in.SurgeryAt,
		SurgeonID:         &surgeonID,
		ProviderID:        in.ProviderID,
		SurgicalConsentID: &formID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.get(ctx, p.ID)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.deriver.Apply(p)
	return p, nil
}

// GetPatient returns a patient with derived fields. Patients may only read
// their own record.
func (s *Service) GetPatient(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Patient, error) {
	if err := checkSelf(caller, id); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// checkSelf rejects patients acting on a record other than their own.
// Professionals and admins pass.
func checkSelf(caller auth.Principal, id uuid.UUID) error {
	if caller.IsAdmin() || caller.HasRole(auth.RoleSurgeon) || caller.HasRole(auth.RoleAnesthesiologist) {
		return nil
	}
	if caller.HasRole(auth.RolePatient) && caller.ID == id.String() {
		return nil
	}
	return apperr.Forbidden("access to this patient is not allowed")
}

func (s *Service) ListPatients(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	list, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range list {
		s.deriver.Apply(p)
	}
	if list == nil {
		list = []*Patient{}
	}
	return list, total, nil
}

// UpdateSurgeryDate sets or, with nil, clears the surgery date.
func (s *Service) UpdateSurgeryDate(ctx context.Context, caller auth.Principal, id uuid.UUID, at *time.Time) (*Patient, error) {
	if !caller.IsAdmin() && !caller.HasRole(auth.RoleSurgeon) {
		return nil, apperr.Forbidden("required role: %s", auth.RoleSurgeon)
	}
	if err := s.repo.UpdateSurgeryDate(ctx, id, at); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// AttachAnesthesiaConsent assigns an anesthesia consent with instructions and
// the medications to suspend.
func (s *Service) AttachAnesthesiaConsent(ctx context.Context, caller auth.Principal, id uuid.UUID, in AnesthesiaConsentInput) (*Patient, error) {
	anesthesiologistID, err := actingID(caller, auth.RoleAnesthesiologist, in.AnesthesiologistID, "anesthesiologist_id")
	if err != nil {
		return nil, err
	}
	if in.ConsentFormID == uuid.Nil {
		return nil, apperr.Validation("consent_form_id is required")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.profs.GetWithRole(ctx, anesthesiologistID, professional.RoleAnesthesiologist); err != nil {
		return nil, err
	}
	if err := s.requireForm(ctx, in.ConsentFormID, consentform.TypeAnesthesia); err != nil {
		return nil, err
	}

	meds := make([]string, 0, len(in.MedicationsToSuspend))
	for _, m := range in.MedicationsToSuspend {
		if m = strings.TrimSpace(m); m != "" {
			meds = append(meds, m)
		}
	}
	err = s.repo.AttachAnesthesia(ctx, id, AnesthesiaAssignment{
		ConsentFormID:        in.ConsentFormID,
		AnesthesiologistID:   anesthesiologistID,
		Instructions:         in.Instructions,
		MedicationsToSuspend: meds,
	})
	if err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// Sign records the patient's signature for one consent. The image and the
// signing time are written together, once.
func (s *Service) Sign(ctx context.Context, caller auth.Principal, id uuid.UUID, t ConsentType, image string) (*Patient, error) {
	if !caller.HasRole(auth.RolePatient) || caller.ID != id.String() {
		return nil, apperr.Forbidden("only the patient can sign their consents")
	}
	if !strings.HasPrefix(image, "data:image/") {
		return nil, apperr.Validation("image must be a data:image URL")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch StateOf(p, t) {
	case ConsentUnassigned:
		return nil, apperr.Precondition("%s consent has not been assigned", t)
	case ConsentSigned:
		return nil, apperr.Conflict("%s consent is already signed", t)
	}

	ok, err := s.repo.Sign(ctx, id, t, image, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent signer.
		return nil, apperr.Conflict("%s consent is already signed", t)
	}
	s.logger.Info().Str("patient_id", id.String()).Str("consent", string(t)).Msg("consent signed")
	return s.get(ctx, id)
}

// Login checks a patient's email and cedula. Failures never reveal whether
// the email exists.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	cedula := strings.TrimSpace(in.Cedula)
	if email == "" || cedula == "" {
		return nil, apperr.Validation("email and cedula are required")
	}
	candidates, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var match *Patient
	for _, p := range candidates {
		if subtle.ConstantTimeCompare([]byte(p.Cedula), []byte(cedula)) == 1 {
			match = p
		}
	}
	if match == nil {
		return nil, apperr.Auth("invalid credentials")
	}

	tok, err := s.tokens.Issue(match.ID.String(), match.FullName(), auth.RolePatient)
	if err != nil {
		return nil, err
	}
	s.deriver.Apply(match)
	return &LoginResult{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.ExpiresAt,
		Patient:     match,
	}, nil
}

// PortalURL is the link patients follow to review and sign.
func (s *Service) PortalURL(p *Patient) string {
	return s.baseURL + "/#patient?email=" + url.QueryEscape(p.Email)
}

// PortalQR renders the portal URL of a patient as a PNG QR code.
func (s *Service) PortalQR(ctx context.Context, id uuid.UUID) ([]byte, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.PortalURL(p), qrcode.Medium, 256)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not render QR code", err)
	}
	return png, nil
}

// SendConsentEmail mails the patient the consents currently associated with
// the record, plus the portal link.
func (s *Service) SendConsentEmail(ctx context.Context, id uuid.UUID) (*EmailReceipt, error) {
	if s.mailer == nil {
		return nil, apperr.Unavailable("email delivery is not configured")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Email) == "" {
		return nil, apperr.Validation("patient has no email address")
	}

	var attachments []notification.Attachment
	var names []string
	for _, formID := range []*uuid.UUID{p.SurgicalConsentID, p.AnesthesiaConsentID} {
		if formID == nil {
			continue
		}
		f, err := s.forms.Content(ctx, *formID)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, notification.Attachment{
			FileName:    f.FileName,
			ContentType: "application/pdf",
			Content:     f.Content,
		})
		names = append(names, f.FileName)
	}
	if len(attachments) == 0 {
		return nil, apperr.Precondition("patient has no consents to send")
	}

	procedure := "por confirmar"
	if p.SurgicalProcedure != nil && strings.TrimSpace(*p.SurgicalProcedure) != "" {
		procedure = *p.SurgicalProcedure
	}
	subject, body, err := s.templates.Render(notification.TemplateConsentEmail, map[string]string{
		"patient_name": p.FullName(),
		"procedure":    procedure,
		"portal_url":   s.PortalURL(p),
	})
	if err != nil {
		return nil, err
	}

	err = s.mailer.Send(ctx, notification.Message{
		To:          p.Email,
		ToName:      p.FullName(),
		Subject:     subject,
		HTMLBody:    body,
		Attachments: attachments,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not send email", err)
	}
	s.logger.Info().Str("patient_id", id.String()).Strs("attachments", names).Msg("consent email sent")
	return &EmailReceipt{SentTo: p.Email, Attachments: names}, nil
}
