package model

import "time"

// User mirrors the `users` table. Boards is derived from board
// membership and is only filled where a handler needs it.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password, never serialized.
//	Avatar       – optional URL of the uploaded avatar.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Boards       []uint64  `json:"boards,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MemberSummary is the reduced user projection exposed in member lists,
// searches and card assignees.
type MemberSummary struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Summary projects a user onto MemberSummary.
func (u User) Summary() MemberSummary {
	return MemberSummary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}
