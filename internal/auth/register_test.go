package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/internal/users"
	"github.com/mercato-labs/mercato-backend/pkg/config"
	pkgmodels "github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/outbox"
	"github.com/mercato-labs/mercato-backend/pkg/security"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRegisterUserRepo struct {
	data      map[string]*pkgmodels.User
	created   *pkgmodels.User
	createErr error
}

func newStubRegisterUserRepo() *stubRegisterUserRepo {
	return &stubRegisterUserRepo{data: map[string]*pkgmodels.User{}}
}

func (s *stubRegisterUserRepo) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRegisterUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.data[dto.Email] = user
	s.created = user
	return user, nil
}

type stubRegisterOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubRegisterOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type registerTestSetup struct {
	service  RegisterService
	userRepo *stubRegisterUserRepo
	outbox   *stubRegisterOutbox
}

func newRegisterTestSetup(t *testing.T) *registerTestSetup {
	t.Helper()
	userRepo := newStubRegisterUserRepo()
	publisher := &stubRegisterOutbox{}
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner: stubTxRunner{},
		UserRepoFactory: func(tx *gorm.DB) registerUserRepository {
			return userRepo
		},
		Outbox:         publisher,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return &registerTestSetup{
		service:  svc,
		userRepo: userRepo,
		outbox:   publisher,
	}
}

func sampleRegisterRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Jamie",
		LastName:  "Rivera",
		Email:     email,
		Password:  "Secret123!",
	}
}

func TestRegisterCreatesCustomer(t *testing.T) {
	setup := newRegisterTestSetup(t)

	resp, err := setup.service.Register(context.Background(), sampleRegisterRequest("New.Shopper@Example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	created := setup.userRepo.created
	if created == nil {
		t.Fatalf("expected user to be created")
	}
	if created.Email != "new.shopper@example.com" {
		t.Fatalf("expected normalized email, got %s", created.Email)
	}
	if created.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", created.Role)
	}
	if created.PasswordHash == "Secret123!" {
		t.Fatalf("expected password to be hashed")
	}
	valid, err := security.VerifyPassword("Secret123!", created.PasswordHash)
	if err != nil || !valid {
		t.Fatalf("expected stored hash to verify, valid=%v err=%v", valid, err)
	}
	if resp.User == nil || resp.User.ID != created.ID {
		t.Fatalf("expected response to carry the created user")
	}

	if len(setup.outbox.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(setup.outbox.events))
	}
	event := setup.outbox.events[0]
	if event.EventType != enums.EventUserRegistered {
		t.Fatalf("expected user_registered event, got %s", event.EventType)
	}
	if event.AggregateID != created.ID {
		t.Fatalf("expected event aggregate to be the new user")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	setup := newRegisterTestSetup(t)
	ctx := context.Background()

	if _, err := setup.service.Register(ctx, sampleRegisterRequest("dup@example.com")); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := setup.service.Register(ctx, sampleRegisterRequest("dup@example.com"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(setup.outbox.events) != 1 {
		t.Fatalf("expected no second outbox event")
	}
}

func TestRegisterValidation(t *testing.T) {
	setup := newRegisterTestSetup(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"blank email", func(r *RegisterRequest) { r.Email = "  " }},
		{"blank first name", func(r *RegisterRequest) { r.FirstName = "" }},
		{"blank last name", func(r *RegisterRequest) { r.LastName = "" }},
		{"short password", func(r *RegisterRequest) { r.Password = "short1" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sampleRegisterRequest("valid@example.com")
			tc.mutate(&req)
			_, err := setup.service.Register(ctx, req)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
