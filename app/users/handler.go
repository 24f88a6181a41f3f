package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/evimeria/evimeria-api/app/api"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/internal/validation"
	"github.com/evimeria/evimeria-api/models"
)

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

type UserProvider interface {
	CreateUser(user *models.User) error
	GetByID(id uint) (*models.User, error)
}

type UserHandler struct {
	repo UserProvider
	hash func(password []byte) ([]byte, error)
}

func NewUserHandler(r UserProvider) *UserHandler {
	return &UserHandler{
		repo: r,
		hash: func(password []byte) ([]byte, error) {
			return bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
		},
	}
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}

func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateUserRequest
	if err := api.DecodeJSON(r, &input); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := validation.Struct(input); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.hash([]byte(input.Password))
	if err != nil {
		logging.Error().Err(err).Msg("failed to hash password")
		api.Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user := &models.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
	}
	if err := h.repo.CreateUser(user); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			api.Error(w, http.StatusConflict, "Email already registered")
			return
		}
		logging.Error().Err(err).Msg("failed to create user")
		api.Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	api.Created(w, newUserResponse(user))
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		api.Error(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := h.repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			api.Error(w, http.StatusNotFound, "User not found")
			return
		}
		logging.Error().Err(err).Uint64("user_id", id).Msg("failed to get user")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}
	api.OK(w, newUserResponse(user))
}
