package models

// Reading is a single raw sample taken during a poll window.
type Reading struct {
	Key    uint      `gorm:"column:key;primaryKey;autoIncrement"`
	Time   Timestamp `gorm:"column:time"`
	PM25   float64   `gorm:"column:pm25"`
	PM10   float64   `gorm:"column:pm10"`
	PollID string    `gorm:"column:poll_id;index"`
}

func (Reading) TableName() string {
	return "particles"
}
