package toml

import "fmt"

const currentSchemaVersion = 1

// fileSchema is the whole local backend: registered users, the signed-in
// session and every collection as an array of tables.
type fileSchema struct {
	Version int                         `toml:"version"`
	Session *sessionSchema              `toml:"session,omitempty"`
	Users   []userSchema                `toml:"users,omitempty"`
	Tables  map[string][]map[string]any `toml:"tables,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Tables == nil {
		s.Tables = map[string][]map[string]any{}
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported data schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func (s fileSchema) userByID(id string) (userSchema, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return userSchema{}, false
}

func (s fileSchema) userByEmail(email string) (userSchema, bool) {
	for _, u := range s.Users {
		if u.Email == email {
			return u, true
		}
	}
	return userSchema{}, false
}

type userSchema struct {
	ID           string `toml:"id"`
	Email        string `toml:"email"`
	PasswordHash string `toml:"password_hash"`
	CreatedAt    string `toml:"created_at"`
}

type sessionSchema struct {
	UserID     string `toml:"user_id"`
	SignedInAt string `toml:"signed_in_at"`
}
