package models

import (
	"time"

	"gorm.io/gorm"
)

// Registry read models. Farmer/farm/animal lifecycles are owned by the
// surrounding registry service; the core only reads them for scoping and
// the per-farm vaccination summary.

type Farmer struct {
	ID        int            `gorm:"primary_key" json:"id"`
	UserId    int            `gorm:"index;not null" json:"user_id"`
	Name      string         `gorm:"size:255" json:"name"`
	Phone     string         `gorm:"size:50" json:"phone"`
	Address   string         `gorm:"size:255" json:"address"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type Farm struct {
	ID        int            `gorm:"primary_key" json:"id"`
	FarmerId  int            `gorm:"index;not null" json:"farmer_id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Location  string         `gorm:"size:255" json:"location"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type Animal struct {
	ID        int            `gorm:"primary_key" json:"id"`
	FarmId    int            `gorm:"index;not null" json:"farm_id"`
	TagNumber string         `gorm:"size:100" json:"tag_number"`
	Species   string         `gorm:"size:100" json:"species"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// FarmOfficer links an officer user to a farm they supervise.
type FarmOfficer struct {
	FarmId    int       `gorm:"primaryKey;autoIncrement:false" json:"farm_id"`
	UserId    int       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FarmOfficer) TableName() string {
	return "farm_officer"
}
