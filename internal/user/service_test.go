package user_test

import (
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/user"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Module Suite")
}

// Mock repository for testing
type mockUserRepository struct {
	users       map[int64]*user.User
	agents      []*user.Agent
	createError error
	updateError error
	nextID      int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[int64]*user.User),
		agents: make([]*user.Agent, 0),
		// Above the session-user IDs so a created account never aliases the actor.
		nextID: 100,
	}
}

func (m *mockUserRepository) Create(u *user.User) error {
	if m.createError != nil {
		return m.createError
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return internal.ErrEmailTaken
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) GetByID(id int64) (*user.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetAll() ([]*user.User, error) {
	all := make([]*user.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	return all, nil
}

func (m *mockUserRepository) GetAgents() ([]*user.Agent, error) {
	return m.agents, nil
}

func (m *mockUserRepository) Update(u *user.User) error {
	if m.updateError != nil {
		return m.updateError
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) Delete(id int64) error {
	delete(m.users, id)
	return nil
}

// Mock password hasher for testing
type mockHasher struct{}

func (mockHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

var _ = Describe("UserService", func() {
	var (
		service  *user.Service
		mockRepo *mockUserRepository
		logger   *slog.Logger

		admin    *auth.SessionUser
		agent    *auth.SessionUser
		employee *auth.SessionUser
	)

	BeforeEach(func() {
		mockRepo = newMockUserRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = user.NewService(mockRepo, mockHasher{}, logger)

		admin = &auth.SessionUser{ID: 1, Email: "amira@example.com", FullName: "Amira Admin", Role: auth.RoleAdmin}
		agent = &auth.SessionUser{ID: 2, Email: "alex@example.com", FullName: "Alex Agent", Role: auth.RoleAgent}
		employee = &auth.SessionUser{ID: 3, Email: "dana@example.com", FullName: "Dana Employee", Role: auth.RoleEmployee}
	})

	Describe("CreateUser", func() {
		var dto user.CreateUserDTO

		BeforeEach(func() {
			dto = user.CreateUserDTO{
				Email:    "new@example.com",
				Password: "secret123",
				FullName: "New Person",
				Role:     auth.RoleEmployee,
			}
		})

		It("should create an account with a hashed password", func() {
			created, err := service.CreateUser(admin, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.PasswordHash).To(Equal("hashed:secret123"))
			Expect(created.Role).To(Equal(auth.RoleEmployee))
		})

		It("should deny agents", func() {
			created, err := service.CreateUser(agent, dto)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(created).To(BeNil())
		})

		It("should deny employees", func() {
			created, err := service.CreateUser(employee, dto)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(created).To(BeNil())
		})

		It("should surface a duplicate email as a conflict", func() {
			_, err := service.CreateUser(admin, dto)
			Expect(err).ToNot(HaveOccurred())

			created, err := service.CreateUser(admin, dto)

			Expect(err).To(MatchError(internal.ErrEmailTaken))
			Expect(created).To(BeNil())
		})

		It("should reject a short password", func() {
			dto.Password = "abc"

			created, err := service.CreateUser(admin, dto)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("password"))
			Expect(created).To(BeNil())
		})

		It("should reject an unknown role", func() {
			dto.Role = "superuser"

			created, err := service.CreateUser(admin, dto)

			Expect(err).To(HaveOccurred())
			Expect(created).To(BeNil())
		})
	})

	Describe("UpdateUser", func() {
		var targetID int64

		BeforeEach(func() {
			created, err := service.CreateUser(admin, user.CreateUserDTO{
				Email:    "target@example.com",
				Password: "secret123",
				FullName: "Target Person",
				Role:     auth.RoleEmployee,
			})
			Expect(err).ToNot(HaveOccurred())
			targetID = created.ID
		})

		It("should apply only the provided fields", func() {
			role := auth.RoleAgent

			updated, err := service.UpdateUser(admin, targetID, user.UpdateUserDTO{Role: &role})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Role).To(Equal(auth.RoleAgent))
			Expect(updated.Email).To(Equal("target@example.com"))
		})

		It("should rehash a changed password", func() {
			password := "newsecret"

			updated, err := service.UpdateUser(admin, targetID, user.UpdateUserDTO{Password: &password})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.PasswordHash).To(Equal("hashed:newsecret"))
		})

		It("should deny non-admins", func() {
			name := "Renamed"

			updated, err := service.UpdateUser(agent, targetID, user.UpdateUserDTO{FullName: &name})

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(updated).To(BeNil())
		})

		It("should return not found for a missing account", func() {
			name := "Renamed"

			updated, err := service.UpdateUser(admin, 99999, user.UpdateUserDTO{FullName: &name})

			Expect(err).To(MatchError(internal.ErrUserNotFound))
			Expect(updated).To(BeNil())
		})
	})

	Describe("DeleteUser", func() {
		var targetID int64

		BeforeEach(func() {
			created, err := service.CreateUser(admin, user.CreateUserDTO{
				Email:    "target@example.com",
				Password: "secret123",
				FullName: "Target Person",
				Role:     auth.RoleEmployee,
			})
			Expect(err).ToNot(HaveOccurred())
			targetID = created.ID
		})

		It("should delete another account", func() {
			err := service.DeleteUser(admin, targetID)

			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.users).ToNot(HaveKey(targetID))
		})

		It("should refuse to delete the caller's own account", func() {
			err := service.DeleteUser(admin, admin.ID)

			Expect(err).To(MatchError(internal.ErrSelfDelete))
		})

		It("should deny non-admins", func() {
			err := service.DeleteUser(agent, targetID)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(mockRepo.users).To(HaveKey(targetID))
		})
	})

	Describe("ListUsers", func() {
		It("should deny agents", func() {
			users, err := service.ListUsers(agent)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(users).To(BeNil())
		})

		It("should allow admins", func() {
			users, err := service.ListUsers(admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(users).ToNot(BeNil())
		})
	})

	Describe("ListAgents", func() {
		BeforeEach(func() {
			mockRepo.agents = []*user.Agent{
				{ID: 2, FullName: "Alex Agent", Email: "alex@example.com", Role: auth.RoleAgent},
			}
		})

		It("should allow agents", func() {
			agents, err := service.ListAgents(agent)

			Expect(err).ToNot(HaveOccurred())
			Expect(agents).To(HaveLen(1))
		})

		It("should deny employees", func() {
			agents, err := service.ListAgents(employee)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(agents).To(BeNil())
		})
	})
})
