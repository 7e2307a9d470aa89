// Package model holds the domain entities and the typed payloads decoded from
// validated input.
package model

import "time"

// User is the domain entity persisted through a UserRepository. Email is the
// unique key.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarKey string    `json:"avatarKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File is an object read back from a FileRepository.
type File struct {
	Key         string
	ContentType string
	Data        []byte
}

// RegisterUserPayload is decoded from the register_user schema.
type RegisterUserPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserIDPayload is decoded from the user_id schema.
type UserIDPayload struct {
	ID string `json:"id"`
}

// UpdateUserPayload is decoded from the update_user schema. Nil fields are
// left unchanged.
type UpdateUserPayload struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// PutAvatarPayload is decoded from the put_avatar schema. Data is base64.
type PutAvatarPayload struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}
