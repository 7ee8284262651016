package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrEmailTaken            = fmt.Errorf("%w: a member with this email already exists", domain.ErrConflict)
	ErrMemberAlreadyAssigned = fmt.Errorf("%w: member is already assigned to another trainer", domain.ErrConflict)
	ErrHashingFailed         = errors.New("failed to hash password")
	ErrNotTrainerCapable     = domain.NewValidationError("trainerId", "referenced member cannot act as a trainer")
	ErrNotTrainer            = domain.NewValidationError("trainerId", "member is not a trainer")
	ErrCannotRemoveAdmin     = domain.NewValidationError("memberId", "admin accounts cannot be removed")
	ErrInitialRole           = domain.NewValidationError("role", "members are enrolled as OT; PT is reached by registering sessions")
	ErrMissingCredentials    = domain.NewValidationError("password", "a password or a phone number with at least four digits is required")
	ErrPhoneTaken            = fmt.Errorf("%w: a member with this phone number already exists", domain.ErrConflict)
	ErrWrongPassword         = domain.NewValidationError("currentPassword", "current password is incorrect")
	ErrWeakPassword          = domain.NewValidationError("newPassword", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	ErrEmptyName             = domain.NewValidationError("name", "name cannot be empty")
)

// MinPasswordLength applies to passwords members choose themselves.
const MinPasswordLength = 8

// ProfileUpdate changes the editable profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// EnrollInput describes a new member.
type EnrollInput struct {
	Name      string
	Email     string
	Phone     string
	Password  string
	Role      domain.Role
	TrainerID *primitive.ObjectID
}

// --- Service Interface ---
type DirectoryService interface {
	// Enroll creates a member. Trainers may enroll OT members for themselves; admins may enroll anyone but PT.
	Enroll(ctx context.Context, actor domain.Actor, in EnrollInput) (*domain.Member, error)
	Get(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.Member, error)
	ListTrainees(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) ([]domain.Member, error)
	ListTrainers(ctx context.Context, actor domain.Actor) ([]domain.Member, error)
	// ListMembers is the admin view of the whole directory, optionally filtered by role.
	ListMembers(ctx context.Context, actor domain.Actor, role *domain.Role) ([]domain.Member, error)
	// UpdateProfile edits name and phone. Self, the assigned trainer or an admin may edit; roles never change here.
	UpdateProfile(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in ProfileUpdate) (*domain.Member, error)
	// ChangePassword requires the current password from the member; admins reset without it.
	ChangePassword(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, current, next string) error
	AssignTrainer(ctx context.Context, actor domain.Actor, memberID, trainerID primitive.ObjectID) (*domain.Member, error)
	// Remove soft-deletes a member. Admin accounts can never be removed.
	Remove(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) error
	// HardRemoveTrainer irreversibly deletes a trainer after detaching their trainees.
	// It is admin-only and separate from Remove on purpose.
	HardRemoveTrainer(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) (detached int64, err error)
}

// --- Service Implementation ---

type directoryService struct {
	members repository.MemberRepository
	ledgers repository.LedgerRepository
	history repository.LedgerHistoryRepository
	tx      repository.TxRunner
	authz   *authz.Engine
}

func NewDirectoryService(repos repository.Set, engine *authz.Engine) DirectoryService {
	return &directoryService{
		members: repos.Members,
		ledgers: repos.Ledgers,
		history: repos.History,
		tx:      repos.Tx,
		authz:   engine,
	}
}

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hashed), nil
}

// defaultPassword is the last four digits of the phone number.
func defaultPassword(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}

func (s *directoryService) Enroll(ctx context.Context, actor domain.Actor, in EnrollInput) (*domain.Member, error) {
	// 1. Only custodians enroll others
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleTrainer {
		return nil, authz.Deny(domain.IntentAdmin, actor.ID)
	}

	// 2. Validate Input
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, domain.NewValidationError("email", "name and email are required")
	}
	if in.Role == "" {
		in.Role = domain.RoleOT
	}
	if !in.Role.Valid() {
		return nil, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	if in.Role == domain.RolePT || (actor.Role == domain.RoleTrainer && in.Role != domain.RoleOT) {
		return nil, ErrInitialRole
	}
	password := in.Password
	if password == "" {
		password = defaultPassword(in.Phone)
	}
	if password == "" {
		return nil, ErrMissingCredentials
	}

	// 3. Resolve the trainer
	trainerID := in.TrainerID
	if actor.Role == domain.RoleTrainer {
		if trainerID != nil && *trainerID != actor.ID {
			return nil, authz.Deny(domain.IntentCustodian, *trainerID)
		}
		trainerID = &actor.ID
	}
	if trainerID != nil {
		if !in.Role.IsMemberTier() {
			return nil, domain.NewValidationError("trainerId", "only OT and PT members have a trainer")
		}
		if err := s.requireTrainerCapable(ctx, *trainerID); err != nil {
			return nil, err
		}
	}

	// 4. Persist
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	member := &domain.Member{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		TrainerID:    trainerID,
	}
	if _, err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Printf("INFO: Member %s enrolled as %s by %s", member.ID.Hex(), member.Role, actor.ID.Hex())
	member.PasswordHash = ""
	return member, nil
}

func (s *directoryService) requireTrainerCapable(ctx context.Context, trainerID primitive.ObjectID) error {
	trainer, err := s.authz.Target(ctx, trainerID)
	if err != nil {
		if domain.IsNotFound(err) {
			return ErrNotTrainerCapable
		}
		return err
	}
	if !trainer.Role.CanCoach() {
		return ErrNotTrainerCapable
	}
	return nil
}

func (s *directoryService) Get(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.Member, error) {
	return s.authz.Require(ctx, actor, memberID, domain.IntentRead)
}

func (s *directoryService) ListTrainees(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) ([]domain.Member, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, trainerID); err != nil {
		return nil, err
	}
	return s.members.ListByTrainerID(ctx, trainerID)
}

func (s *directoryService) ListTrainers(ctx context.Context, actor domain.Actor) ([]domain.Member, error) {
	if err := s.authz.RequireAdmin(actor, actor.ID); err != nil {
		return nil, err
	}
	return s.members.ListByRole(ctx, domain.RoleTrainer, nil)
}

func (s *directoryService) ListMembers(ctx context.Context, actor domain.Actor, role *domain.Role) ([]domain.Member, error) {
	if err := s.authz.RequireAdmin(actor, actor.ID); err != nil {
		return nil, err
	}
	if role != nil && !role.Valid() {
		return nil, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", *role))
	}
	return s.members.List(ctx, role)
}

func (s *directoryService) UpdateProfile(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in ProfileUpdate) (*domain.Member, error) {
	member, err := s.authz.Require(ctx, actor, memberID, domain.IntentProfile)
	if err != nil {
		return nil, err
	}

	// 1. Validate Input
	name, phone := member.Name, member.Phone
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
	}
	if in.Phone != nil {
		phone = strings.TrimSpace(*in.Phone)
		if phone != "" && phone != member.Phone {
			if _, err := s.members.GetByPhone(ctx, phone); err == nil {
				return nil, ErrPhoneTaken
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
	}

	// 2. Persist
	if err := s.members.UpdateProfile(ctx, memberID, name, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("member", memberID)
		}
		return nil, err
	}
	member.Name, member.Phone = name, phone
	member.PasswordHash = ""
	return member, nil
}

func (s *directoryService) ChangePassword(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, current, next string) error {
	if err := s.authz.RequireSelfOrAdmin(actor, memberID); err != nil {
		return err
	}
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	member, err := s.authz.Target(ctx, memberID)
	if err != nil {
		return err
	}

	// Admins resetting someone else's password skip the current-password check.
	if actor.ID == memberID {
		if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(current)); err != nil {
			return ErrWrongPassword
		}
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.members.SetPasswordHash(ctx, memberID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound("member", memberID)
		}
		return err
	}
	log.Printf("INFO: Password of member %s changed by %s", memberID.Hex(), actor.ID.Hex())
	return nil
}

func (s *directoryService) AssignTrainer(ctx context.Context, actor domain.Actor, memberID, trainerID primitive.ObjectID) (*domain.Member, error) {
	// 1. Who may assign: admins to anyone, trainers only to themselves
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleTrainer:
		if trainerID != actor.ID {
			return nil, authz.Deny(domain.IntentCustodian, memberID)
		}
	default:
		return nil, authz.Deny(domain.IntentCustodian, memberID)
	}

	// 2. The referenced trainer must be able to coach
	if err := s.requireTrainerCapable(ctx, trainerID); err != nil {
		return nil, err
	}

	// 3. Only member tiers carry a trainer
	member, err := s.authz.Target(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !member.Role.IsMemberTier() {
		return nil, domain.NewValidationError("memberId", "only OT and PT members can be assigned a trainer")
	}
	if actor.Role == domain.RoleTrainer && member.TrainerID != nil && *member.TrainerID != actor.ID {
		return nil, ErrMemberAlreadyAssigned
	}

	// 4. Persist
	if err := s.members.SetTrainer(ctx, memberID, trainerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("member", memberID)
		}
		return nil, err
	}
	member.TrainerID = &trainerID
	return member, nil
}

func (s *directoryService) Remove(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.authz.Target(ctx, memberID)
		if err != nil {
			return err
		}
		// Checked before authorization: no actor may remove an admin.
		if target.Role == domain.RoleAdmin {
			return ErrCannotRemoveAdmin
		}
		if err := s.authz.RequireSelfOrAdmin(actor, memberID); err != nil {
			return err
		}

		if target.IsTrainer() {
			if _, err := s.members.ClearTrainer(ctx, memberID); err != nil {
				return fmt.Errorf("detach trainees: %w", err)
			}
		}
		if err := s.members.SoftDelete(ctx, memberID, time.Now().UTC()); err != nil {
			return err
		}
		log.Printf("INFO: Member %s removed by %s", memberID.Hex(), actor.ID.Hex())
		return nil
	})
}

func (s *directoryService) HardRemoveTrainer(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) (detached int64, err error) {
	if err := s.authz.RequireAdmin(actor, trainerID); err != nil {
		return 0, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		trainer, err := s.authz.Target(ctx, trainerID)
		if err != nil {
			return err
		}
		if trainer.Role != domain.RoleTrainer {
			return ErrNotTrainer
		}

		if detached, err = s.members.ClearTrainer(ctx, trainerID); err != nil {
			return fmt.Errorf("detach trainees: %w", err)
		}
		if err := s.ledgers.DeleteByMemberID(ctx, trainerID); err != nil {
			return err
		}
		if err := s.history.DeleteByMemberID(ctx, trainerID); err != nil {
			return err
		}
		return s.members.HardDelete(ctx, trainerID)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("WARN: Trainer %s permanently deleted by %s; %d trainees detached", trainerID.Hex(), actor.ID.Hex(), detached)
	return detached, nil
}

// EnsureAdmin creates an admin account for email unless a member with that email exists.
// It runs at startup, outside any actor's authority.
func EnsureAdmin(ctx context.Context, members repository.MemberRepository, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, ErrMissingCredentials
	}
	if _, err := members.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := &domain.Member{Name: "Administrator", Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if _, err := members.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	log.Printf("INFO: Bootstrap admin %s created", email)
	return true, nil
}
