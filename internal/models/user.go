package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

type School struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	City      string    `json:"city" gorm:"size:100"`
	Lifecycle Lifecycle `json:"lifecycle" gorm:"type:varchar(10);not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Student maps an identity-provider user to a school.
type Student struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex;not null;size:255"`
	SchoolID  uint      `json:"school_id" gorm:"not null;index"`
	FullName  string    `json:"full_name" gorm:"size:100"`
	Lifecycle Lifecycle `json:"lifecycle" gorm:"type:varchar(10);not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	School *School `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
}

type Challenge struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"not null;size:255"`
	Lifecycle Lifecycle  `json:"lifecycle" gorm:"type:varchar(10);not null;default:active"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// User is the authenticated caller, built from identity-provider claims.
// It is not persisted.
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}
