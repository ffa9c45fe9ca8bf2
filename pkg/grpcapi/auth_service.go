package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/auth"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

// AuthAPIServer is the server contract of the auth_api.AuthService service.
type AuthAPIServer interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	ValidateToken(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error)
}

// AuthAPIService implements AuthAPIServer on top of the directory and the
// token service.
type AuthAPIService struct {
	service *directory.Service
	tokens  *auth.TokenService
}

// NewAuthAPIService creates the auth_api.AuthService implementation.
func NewAuthAPIService(service *directory.Service, tokens *auth.TokenService) *AuthAPIService {
	return &AuthAPIService{service: service, tokens: tokens}
}

// Login checks credentials and issues a signed token. Failed attempts
// increment the user's failure counter; successful ones stamp LastLogin.
func (s *AuthAPIService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "username and password are required")
	}

	user, err := s.service.FindUserByUsername(req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "DB error")
	}
	if user == nil {
		return nil, status.Error(codes.Unauthenticated, "Invalid credentials")
	}
	if !user.Enabled {
		return nil, status.Error(codes.PermissionDenied, "User account is disabled")
	}

	valid, err := user.PasswordHash.Verify(req.Password)
	if err != nil || !valid {
		if err := s.service.RecordLogin(user.ID, false); err != nil {
			logger.Warn("failed to record login attempt", "username", user.Username, "error", err)
		}
		return nil, status.Error(codes.Unauthenticated, "Invalid credentials")
	}

	token, expiresAt, err := s.tokens.Generate(user.ID.String())
	if err != nil {
		return nil, status.Error(codes.Internal, "Failed to generate token")
	}

	if err := s.service.RecordLogin(user.ID, true); err != nil {
		logger.Warn("failed to record login", "username", user.Username, "error", err)
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		UserID:    user.ID.String(),
	}, nil
}

// ValidateToken reports whether a token verifies against the signing key.
// Invalid tokens yield Valid=false rather than an error.
func (s *AuthAPIService) ValidateToken(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error) {
	claims, err := s.tokens.Validate(req.Token)
	if err != nil {
		return &ValidateTokenResponse{Valid: false}, nil
	}

	return &ValidateTokenResponse{Valid: true, UserID: claims.UserID()}, nil
}

// ============================================================================
// Service registration
// ============================================================================

func authAPILoginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthAPIServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AuthAPIServiceName + "/Login"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthAPIServer).Login(ctx, req.(*LoginRequest))
	})
}

func authAPIValidateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthAPIServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AuthAPIServiceName + "/ValidateToken"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthAPIServer).ValidateToken(ctx, req.(*ValidateTokenRequest))
	})
}

// AuthAPIServiceName is the fully qualified service name from the proto
// definition.
const AuthAPIServiceName = "auth_api.AuthService"

// AuthAPIServiceDesc registers AuthAPIServer implementations with a
// grpc.Server.
var AuthAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthAPIServiceName,
	HandlerType: (*AuthAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: authAPILoginHandler},
		{MethodName: "ValidateToken", Handler: authAPIValidateTokenHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/auth_api.proto",
}
