// Package portal is the orchestration layer over the identity store, the
// patient registry and the announcement board. Cross-component invariants
// such as register-then-admit atomicity and the delete cascade live here
// and nowhere else.
package portal

import (
	"context"
	"errors"

	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/registry"
)

// Service routes portal operations to the three data components.
type Service struct {
	identities identity.Store
	records    registry.Store
	board      board.Store
}

// New constructs the portal service.
func New(identities identity.Store, records registry.Store, announcements board.Store) (*Service, error) {
	if identities == nil || records == nil || announcements == nil {
		return nil, errors.New("portal: all stores are required")
	}
	return &Service{identities: identities, records: records, board: announcements}, nil
}

// RegisterInput carries the registration form fields. Name, email and secret
// are mandatory; the admission details may be empty.
type RegisterInput struct {
	Name    string
	Email   string
	Secret  string
	Phone   string
	Address string
	Reason  string
}

// Register creates a patient identity and its admission record as one
// logical transaction: when identity creation fails, the registry is never
// touched.
func (s *Service) Register(ctx context.Context, in RegisterInput) (identity.Identity, registry.Record, error) {
	id, err := s.identities.Register(ctx, in.Name, in.Email, in.Secret)
	if err != nil {
		return identity.Identity{}, registry.Record{}, err
	}
	rec, err := s.records.Admit(ctx, id.ID, id.Name, in.Phone, in.Address, in.Reason)
	if err != nil {
		// Admission cannot be left half-done: roll the identity back so no
		// patient exists without a record.
		_ = s.identities.RemoveByID(ctx, id.ID)
		return identity.Identity{}, registry.Record{}, err
	}
	return id, rec, nil
}

// Login resolves credentials to an identity.
func (s *Service) Login(ctx context.Context, email, secret string) (identity.Identity, error) {
	return s.identities.Authenticate(ctx, email, secret)
}

// PatientDashboard returns the caller's admission record plus the board.
func (s *Service) PatientDashboard(ctx context.Context, ownerID int64) (registry.Record, []board.Announcement, error) {
	rec, err := s.records.FindByOwner(ctx, ownerID)
	if err != nil {
		return registry.Record{}, nil, err
	}
	anns, err := s.board.List(ctx)
	if err != nil {
		return registry.Record{}, nil, err
	}
	return rec, anns, nil
}

// AdminDashboard returns every admission record plus the board.
func (s *Service) AdminDashboard(ctx context.Context) ([]registry.Record, []board.Announcement, error) {
	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	anns, err := s.board.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return recs, anns, nil
}

// Announcements returns the public board, most recent first.
func (s *Service) Announcements(ctx context.Context) ([]board.Announcement, error) {
	return s.board.List(ctx)
}

// PostAnnouncement publishes a notice at the head of the board.
func (s *Service) PostAnnouncement(ctx context.Context, title, content string) (board.Announcement, error) {
	return s.board.Post(ctx, title, content)
}

// RemoveAnnouncement drops a notice; unknown ids are a no-op.
func (s *Service) RemoveAnnouncement(ctx context.Context, id int64) error {
	return s.board.Remove(ctx, id)
}

// SetPatientStatus updates an admission's lifecycle label; unknown ids and
// empty labels are a no-op.
func (s *Service) SetPatientStatus(ctx context.Context, recordID int64, status string) error {
	return s.records.SetStatus(ctx, recordID, status)
}

// DeletePatient removes the admission record and cascades into the identity
// store so no record ever outlives its owner. Returns the owning identity id
// and whether anything was deleted; when the record is absent the cascade
// must not fire.
func (s *Service) DeletePatient(ctx context.Context, recordID int64) (int64, bool, error) {
	ownerID, ok, err := s.records.Delete(ctx, recordID)
	if err != nil || !ok {
		return 0, false, err
	}
	if err := s.identities.RemoveByID(ctx, ownerID); err != nil {
		return ownerID, true, err
	}
	return ownerID, true, nil
}
