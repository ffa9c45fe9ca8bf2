package grpcapi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// UserAPIServer is the server contract of the user_api.UserApi service.
type UserAPIServer interface {
	GetUser(ctx context.Context, req *GetUserRequest) (*GetUserResponse, error)
	ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error)
	CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error)
}

// UserService implements UserAPIServer on top of the directory.
type UserService struct {
	service *directory.Service
}

// NewUserService creates the user_api.UserApi implementation.
func NewUserService(service *directory.Service) *UserService {
	return &UserService{service: service}
}

func userToWire(user *models.User) *GetUserResponse {
	return &GetUserResponse{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt.Unix(),
	}
}

// GetUser looks a user up by username.
func (s *UserService) GetUser(ctx context.Context, req *GetUserRequest) (*GetUserResponse, error) {
	if req.Username == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}

	user, err := s.service.FindUserByUsername(req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "DB error")
	}
	if user == nil {
		return nil, status.Error(codes.NotFound, "User not found")
	}

	return userToWire(user), nil
}

// ListUsers returns every user in creation order.
func (s *UserService) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	users, err := s.service.ListUsers()
	if err != nil {
		return nil, status.Error(codes.Internal, "DB error")
	}

	resp := &ListUsersResponse{Users: make([]*GetUserResponse, len(users))}
	for i, user := range users {
		resp.Users[i] = userToWire(user)
	}
	return resp, nil
}

// CreateUser creates an enabled user in the first domain.
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	if req.Username == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}

	dnsName := "corp.acme.com"
	var domainIDs []uuid.UUID
	userSID := sid.NewNTAuthority(1001)
	if domains, err := s.service.ListDomains(); err == nil && len(domains) > 0 {
		dnsName = domains[0].DNSName
		domainIDs = []uuid.UUID{domains[0].ID}
		if domains[0].SID != nil {
			userSID = domains[0].SID.WithRID(1001)
		}
	}

	now := time.Now().UTC()
	primaryGroup := uint32(513)
	user := &models.User{
		ID:                 uuid.New(),
		SID:                userSID,
		Username:           req.Username,
		UserPrincipalName:  req.Username + "@" + dnsName,
		Email:              req.Email,
		DisplayName:        req.DisplayName,
		LastPasswordChange: now,
		Enabled:            true,
		Domains:            domainIDs,
		Groups:             []uuid.UUID{},
		CreatedAt:          now,
		UpdatedAt:          now,
		Meta:               map[string]string{},
		PrimaryGroupID:     &primaryGroup,
	}

	if req.Password != "" {
		hash, err := models.NewBcryptHash(req.Password)
		if err != nil {
			return nil, status.Error(codes.Internal, "Failed to hash password")
		}
		user.PasswordHash = hash
	}

	if err := s.service.CreateUser(user); err != nil {
		switch {
		case errors.Is(err, directory.ErrAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, directory.ErrInvalidInput):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Error(codes.Internal, "Failed to create user")
		}
	}

	return &CreateUserResponse{ID: user.ID.String()}, nil
}

// ============================================================================
// Service registration
// ============================================================================

func userAPIGetUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserAPIServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + UserAPIServiceName + "/GetUser"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(UserAPIServer).GetUser(ctx, req.(*GetUserRequest))
	})
}

func userAPIListUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListUsersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserAPIServer).ListUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + UserAPIServiceName + "/ListUsers"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(UserAPIServer).ListUsers(ctx, req.(*ListUsersRequest))
	})
}

func userAPICreateUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserAPIServer).CreateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + UserAPIServiceName + "/CreateUser"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(UserAPIServer).CreateUser(ctx, req.(*CreateUserRequest))
	})
}

// UserAPIServiceName is the fully qualified service name from the proto
// definition.
const UserAPIServiceName = "user_api.UserApi"

// UserAPIServiceDesc registers UserAPIServer implementations with a
// grpc.Server.
var UserAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: UserAPIServiceName,
	HandlerType: (*UserAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: userAPIGetUserHandler},
		{MethodName: "ListUsers", Handler: userAPIListUsersHandler},
		{MethodName: "CreateUser", Handler: userAPICreateUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/user_api.proto",
}
