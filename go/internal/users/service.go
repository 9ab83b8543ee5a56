package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// UserServiceName is the fully-qualified name of the user directory service
const UserServiceName = "challengetracker.users.v1.UserService"

const (
	// UserServiceGetUserProcedure is the route of UserService.GetUser
	UserServiceGetUserProcedure = "/" + UserServiceName + "/GetUser"
	// UserServiceListUsersProcedure is the route of UserService.ListUsers
	UserServiceListUsersProcedure = "/" + UserServiceName + "/ListUsers"
)

// UsersApp defines what the service layer needs from the users application
type UsersApp interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Service implements the read-only UserService Connect procedures
type Service struct {
	app UsersApp
}

// NewService creates a new users Connect service
func NewService(app UsersApp) *Service {
	return &Service{
		app: app,
	}
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[GetUserResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}

	user, err := s.app.GetUser(ctx, req.Msg.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", req.Msg.ID).Msg("failed to get user")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetUserResponse{User: user}), nil
}

// ListUsers returns every user of the directory
func (s *Service) ListUsers(ctx context.Context, _ *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	users, err := s.app.ListUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListUsersResponse{Users: users}), nil
}

// NewUserServiceHandler builds an HTTP handler serving the UserService
// procedures with JSON messages. It returns the path to mount it on.
func NewUserServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	getUser := connect.NewUnaryHandler(UserServiceGetUserProcedure, svc.GetUser, opts...)
	listUsers := connect.NewUnaryHandler(UserServiceListUsersProcedure, svc.ListUsers, opts...)

	return "/" + UserServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UserServiceGetUserProcedure:
			getUser.ServeHTTP(w, r)
		case UserServiceListUsersProcedure:
			listUsers.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// JSONCodec carries plain Go messages as JSON on Connect procedures
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
