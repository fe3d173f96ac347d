package domain

import (
	"time"
)

// RoomModel is the GORM model for the watch_rooms table.
type RoomModel struct {
	ID                     string    `gorm:"type:varchar(36);primaryKey"`
	Name                   string    `gorm:"type:varchar(200);not null"`
	CreatedBy              string    `gorm:"type:varchar(36);index;not null"`
	CreatedByName          string    `gorm:"type:varchar(100);not null"`
	MovieID                *string   `gorm:"type:varchar(36)"`
	InviteCode             string    `gorm:"type:varchar(8);uniqueIndex;not null"`
	CurrentTimeMs          int64     `gorm:"not null;default:0"`
	PlaybackState          int       `gorm:"not null;default:0"`
	PlaybackRate           float64   `gorm:"not null;default:1"`
	BroadcastStatus        string    `gorm:"type:varchar(20);index;not null"`
	BroadcastStartTimeType string    `gorm:"type:varchar(20);not null;default:'now'"`
	ScheduledStartTime     *int64
	ActualStartTime        *int64
	ServerManagedTime      int64     `gorm:"not null;default:0"`
	CreatedAt              time.Time `gorm:"autoCreateTime"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "watch_rooms"
}

// ToDomain converts RoomModel to a domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:                     m.ID,
		Name:                   m.Name,
		CreatedBy:              m.CreatedBy,
		CreatedByName:          m.CreatedByName,
		MovieID:                m.MovieID,
		InviteCode:             m.InviteCode,
		CurrentTimeMs:          m.CurrentTimeMs,
		PlaybackState:          PlaybackState(m.PlaybackState),
		PlaybackRate:           m.PlaybackRate,
		BroadcastStatus:        BroadcastStatus(m.BroadcastStatus),
		BroadcastStartTimeType: m.BroadcastStartTimeType,
		ScheduledStartTime:     m.ScheduledStartTime,
		ActualStartTime:        m.ActualStartTime,
		ServerManagedTime:      m.ServerManagedTime,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// RoomToModel converts a domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:                     r.ID,
		Name:                   r.Name,
		CreatedBy:              r.CreatedBy,
		CreatedByName:          r.CreatedByName,
		MovieID:                r.MovieID,
		InviteCode:             r.InviteCode,
		CurrentTimeMs:          r.CurrentTimeMs,
		PlaybackState:          int(r.PlaybackState),
		PlaybackRate:           r.PlaybackRate,
		BroadcastStatus:        string(r.BroadcastStatus),
		BroadcastStartTimeType: r.BroadcastStartTimeType,
		ScheduledStartTime:     r.ScheduledStartTime,
		ActualStartTime:        r.ActualStartTime,
		ServerManagedTime:      r.ServerManagedTime,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// UserModel is the GORM model for users known by display name.
type UserModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Username  string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// MovieModel is the GORM model for catalog entries.
type MovieModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	HLSPath   string    `gorm:"column:hls_path;type:varchar(512)"`
	Status    string    `gorm:"type:varchar(20);index;not null;default:'pending'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for MovieModel.
func (MovieModel) TableName() string {
	return "movies"
}

// ToDomain converts MovieModel to a domain Movie. HLSURL is resolved later.
func (m *MovieModel) ToDomain() *Movie {
	return &Movie{
		ID:      m.ID,
		Title:   m.Title,
		HLSPath: m.HLSPath,
		Status:  m.Status,
	}
}
