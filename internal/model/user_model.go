package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	Id           int64          `gorm:"primaryKey;autoIncrement"`
	Username     string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string         `gorm:"column:password;type:varchar(255);not null"`
	Email        *string        `gorm:"type:varchar(255)"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
