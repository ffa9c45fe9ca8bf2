package grpcapi

import "fmt"

// Message structs mirroring proto/user_api.proto and proto/auth_api.proto.
// The protobuf struct tags carry the field numbers from the proto
// definitions and each type implements the message interface, so the
// standard proto codec serves protoc-generated clients; the JSON codec
// remains available under the "json" content-subtype.

// GetUserRequest asks for a single user by username.
type GetUserRequest struct {
	Username string `protobuf:"bytes,1,opt,name=username,proto3" json:"username"`
}

func (m *GetUserRequest) Reset()         { *m = GetUserRequest{} }
func (m *GetUserRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*GetUserRequest) ProtoMessage()    {}

// GetUserResponse is the wire representation of a user.
type GetUserResponse struct {
	ID          string `protobuf:"bytes,1,opt,name=id,proto3" json:"id"`
	Username    string `protobuf:"bytes,2,opt,name=username,proto3" json:"username"`
	Email       string `protobuf:"bytes,3,opt,name=email,proto3" json:"email,omitempty"`
	DisplayName string `protobuf:"bytes,4,opt,name=display_name,json=displayName,proto3" json:"display_name,omitempty"`
	CreatedAt   int64  `protobuf:"varint,5,opt,name=created_at,json=createdAt,proto3" json:"created_at"`
}

func (m *GetUserResponse) Reset()         { *m = GetUserResponse{} }
func (m *GetUserResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*GetUserResponse) ProtoMessage()    {}

// ListUsersRequest has no parameters.
type ListUsersRequest struct{}

func (m *ListUsersRequest) Reset()         { *m = ListUsersRequest{} }
func (m *ListUsersRequest) String() string { return "ListUsersRequest{}" }
func (*ListUsersRequest) ProtoMessage()    {}

// ListUsersResponse holds every user in the directory.
type ListUsersResponse struct {
	Users []*GetUserResponse `protobuf:"bytes,1,rep,name=users,proto3" json:"users"`
}

func (m *ListUsersResponse) Reset()         { *m = ListUsersResponse{} }
func (m *ListUsersResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListUsersResponse) ProtoMessage()    {}

// CreateUserRequest creates a new user.
type CreateUserRequest struct {
	Username    string `protobuf:"bytes,1,opt,name=username,proto3" json:"username"`
	Email       string `protobuf:"bytes,2,opt,name=email,proto3" json:"email,omitempty"`
	DisplayName string `protobuf:"bytes,3,opt,name=display_name,json=displayName,proto3" json:"display_name,omitempty"`
	Password    string `protobuf:"bytes,4,opt,name=password,proto3" json:"password,omitempty"`
}

func (m *CreateUserRequest) Reset()         { *m = CreateUserRequest{} }
func (m *CreateUserRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*CreateUserRequest) ProtoMessage()    {}

// CreateUserResponse returns the new user's ID.
type CreateUserResponse struct {
	ID string `protobuf:"bytes,1,opt,name=id,proto3" json:"id"`
}

func (m *CreateUserResponse) Reset()         { *m = CreateUserResponse{} }
func (m *CreateUserResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*CreateUserResponse) ProtoMessage()    {}

// LoginRequest authenticates a user by credentials.
type LoginRequest struct {
	Username string `protobuf:"bytes,1,opt,name=username,proto3" json:"username"`
	Password string `protobuf:"bytes,2,opt,name=password,proto3" json:"password"`
}

func (m *LoginRequest) Reset()         { *m = LoginRequest{} }
func (m *LoginRequest) String() string { return fmt.Sprintf("LoginRequest{Username:%s}", m.Username) }
func (*LoginRequest) ProtoMessage()    {}

// LoginResponse carries a signed token on success.
type LoginResponse struct {
	Token     string `protobuf:"bytes,1,opt,name=token,proto3" json:"token"`
	ExpiresAt int64  `protobuf:"varint,2,opt,name=expires_at,json=expiresAt,proto3" json:"expires_at"`
	UserID    string `protobuf:"bytes,3,opt,name=user_id,json=userId,proto3" json:"user_id"`
}

func (m *LoginResponse) Reset()         { *m = LoginResponse{} }
func (m *LoginResponse) String() string { return fmt.Sprintf("LoginResponse{UserID:%s}", m.UserID) }
func (*LoginResponse) ProtoMessage()    {}

// ValidateTokenRequest checks a previously issued token.
type ValidateTokenRequest struct {
	Token string `protobuf:"bytes,1,opt,name=token,proto3" json:"token"`
}

func (m *ValidateTokenRequest) Reset()         { *m = ValidateTokenRequest{} }
func (m *ValidateTokenRequest) String() string { return "ValidateTokenRequest{}" }
func (*ValidateTokenRequest) ProtoMessage()    {}

// ValidateTokenResponse reports validity; UserID is set when valid.
type ValidateTokenResponse struct {
	Valid  bool   `protobuf:"varint,1,opt,name=valid,proto3" json:"valid"`
	UserID string `protobuf:"bytes,2,opt,name=user_id,json=userId,proto3" json:"user_id,omitempty"`
}

func (m *ValidateTokenResponse) Reset()         { *m = ValidateTokenResponse{} }
func (m *ValidateTokenResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ValidateTokenResponse) ProtoMessage()    {}
