package domain

import "time"

type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeTeacher UserType = "teacher"
	UserTypeAlumni  UserType = "alumni"
	UserTypeGuest   UserType = "guest"
)

type Profile struct {
	ID             UserID    `mapstructure:"id"`
	Email          string    `mapstructure:"email"`
	Username       string    `mapstructure:"username"`
	FullName       string    `mapstructure:"full_name"`
	UserType       UserType  `mapstructure:"user_type"`
	AvatarURL      string    `mapstructure:"avatar_url"`
	School         string    `mapstructure:"school"`
	Major          string    `mapstructure:"major"`
	GraduationYear int       `mapstructure:"graduation_year"`
	Bio            string    `mapstructure:"bio"`
	IsPublic       bool      `mapstructure:"is_public"`
	CreatedAt      time.Time `mapstructure:"created_at"`
	UpdatedAt      time.Time `mapstructure:"updated_at"`
}

// ProfileData is the caller-supplied part of a profile at sign-up or
// conversion time.
type ProfileData struct {
	Username       string
	FullName       string
	UserType       UserType
	AvatarURL      string
	School         string
	Major          string
	GraduationYear int
	Bio            string
}

// GuestRecord mirrors the guest_profiles row the remote side keeps for an
// anonymous identity, when it keeps one at all.
type GuestRecord struct {
	ID                UserID    `mapstructure:"id"`
	Token             string    `mapstructure:"guest_token"`
	ConvertedToUserID UserID    `mapstructure:"converted_to_user_id"`
	ConvertedAt       time.Time `mapstructure:"converted_at"`
}
