package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
)

// loadIDRef returns the single entity ID stored under an index key.
func (s *Service) loadIDRef(key string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	ok, err := s.load(key, &id)
	return id, ok, err
}

// CreateUser stores a new user and its lookup indexes. Usernames and emails
// are unique directory-wide, compared case-insensitively.
func (s *Service) CreateUser(user *models.User) error {
	if user.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	if existing, err := s.FindUserByUsername(user.Username); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: user with username %s", ErrAlreadyExists, user.Username)
	}

	if user.Email != "" {
		if existing, err := s.FindUserByEmail(user.Email); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: user with email %s", ErrAlreadyExists, user.Email)
		}
	}

	staged := make(map[string][]byte)
	if err := stage(staged, userKey(user.ID), user); err != nil {
		return err
	}
	if err := stage(staged, usernameIndexKey(user.Username), user.ID); err != nil {
		return err
	}
	if user.Email != "" {
		if err := stage(staged, emailIndexKey(user.Email), user.ID); err != nil {
			return err
		}
	}
	if err := s.appendToIDList(allUsersIndex, user.ID, staged); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("create_user", fmt.Sprintf("username=%s, id=%s", user.Username, user.ID), nil)
	return nil
}

// GetUser returns the user with the given ID, or nil when absent.
func (s *Service) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	ok, err := s.load(userKey(id), &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername resolves a user through the username index.
func (s *Service) FindUserByUsername(username string) (*models.User, error) {
	id, ok, err := s.loadIDRef(usernameIndexKey(username))
	if err != nil || !ok {
		return nil, err
	}
	return s.GetUser(id)
}

// FindUserByEmail resolves a user through the email index.
func (s *Service) FindUserByEmail(email string) (*models.User, error) {
	id, ok, err := s.loadIDRef(emailIndexKey(email))
	if err != nil || !ok {
		return nil, err
	}
	return s.GetUser(id)
}

// ListUsers returns every user in creation order. IDs whose entity is gone
// are skipped.
func (s *Service) ListUsers() ([]*models.User, error) {
	ids, err := s.loadIDList(allUsersIndex)
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.GetUser(id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users = append(users, user)
		}
	}
	return users, nil
}

// DeleteUser removes a user, its indexes, and its group memberships.
func (s *Service) DeleteUser(userID uuid.UUID) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	groups, err := s.FindGroupsByMember(userID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := s.RemoveMemberFromGroup(group.ID, userID); err != nil {
			return err
		}
	}

	staged := make(map[string][]byte)
	if err := s.removeFromIDList(allUsersIndex, userID, staged); err != nil {
		return err
	}

	s.db.Remove(userKey(userID))
	s.db.Remove(usernameIndexKey(user.Username))
	if user.Email != "" {
		s.db.Remove(emailIndexKey(user.Email))
	}
	s.db.Remove(memberIndexKey(userID))

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("delete_user", fmt.Sprintf("username=%s, id=%s", user.Username, userID), nil)
	return nil
}

// RenameUser changes the username and/or display name. A nil pointer leaves
// the field untouched.
func (s *Service) RenameUser(userID uuid.UUID, newUsername, newDisplayName *string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	staged := make(map[string][]byte)

	if newUsername != nil && *newUsername != user.Username {
		existing, err := s.FindUserByUsername(*newUsername)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != userID {
			return fmt.Errorf("%w: username %s already taken", ErrAlreadyExists, *newUsername)
		}

		s.db.Remove(usernameIndexKey(user.Username))
		if err := stage(staged, usernameIndexKey(*newUsername), userID); err != nil {
			return err
		}
		user.Username = *newUsername
	}

	if newDisplayName != nil {
		user.DisplayName = *newDisplayName
	}

	user.UpdatedAt = time.Now().UTC()
	if err := stage(staged, userKey(userID), user); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("rename_user", fmt.Sprintf("id=%s, username=%s", userID, user.Username), nil)
	return nil
}

// UserPatch describes a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Email       *string
	DisplayName *string
	GivenName   *string
	Surname     *string
	Enabled     *bool
}

// UpdateUser applies a partial update. Changing the email re-checks
// uniqueness and moves the email index.
func (s *Service) UpdateUser(userID uuid.UUID, patch UserPatch) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	staged := make(map[string][]byte)

	if patch.Email != nil && *patch.Email != user.Email {
		if *patch.Email != "" {
			existing, err := s.FindUserByEmail(*patch.Email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != userID {
				return nil, fmt.Errorf("%w: email %s already taken", ErrAlreadyExists, *patch.Email)
			}
		}

		if user.Email != "" {
			s.db.Remove(emailIndexKey(user.Email))
		}
		if *patch.Email != "" {
			if err := stage(staged, emailIndexKey(*patch.Email), userID); err != nil {
				return nil, err
			}
		}
		user.Email = *patch.Email
	}

	if patch.DisplayName != nil {
		user.DisplayName = *patch.DisplayName
	}
	if patch.GivenName != nil {
		user.GivenName = *patch.GivenName
	}
	if patch.Surname != nil {
		user.Surname = *patch.Surname
	}
	if patch.Enabled != nil {
		user.Enabled = *patch.Enabled
	}

	user.UpdatedAt = time.Now().UTC()
	if err := stage(staged, userKey(userID), user); err != nil {
		return nil, err
	}

	if err := s.commit(staged); err != nil {
		return nil, err
	}

	s.logAction("update_user", fmt.Sprintf("id=%s, username=%s", userID, user.Username), nil)
	return user, nil
}

// RecordLogin updates the login bookkeeping fields. Success stamps LastLogin
// and clears the failure counter; failure increments it.
func (s *Service) RecordLogin(userID uuid.UUID, success bool) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	now := time.Now().UTC()
	if success {
		user.LastLogin = &now
		user.FailedLogins = 0
	} else {
		user.FailedLogins++
	}
	user.UpdatedAt = now

	return s.store(userKey(userID), user)
}
