package models

// Stats summarises one particle size over a poll window.
type Stats struct {
	Min  float64 `gorm:"column:min" json:"min"`
	Max  float64 `gorm:"column:max" json:"max"`
	Mean float64 `gorm:"column:mean" json:"mean"`
	Std  float64 `gorm:"column:std" json:"std"`
}

// Aggregate is written once per poll window that collected readings.
type Aggregate struct {
	Key    uint      `gorm:"column:key;primaryKey;autoIncrement"`
	Time   Timestamp `gorm:"column:time"`
	PM25   Stats     `gorm:"embedded;embeddedPrefix:pm25_"`
	PM10   Stats     `gorm:"embedded;embeddedPrefix:pm10_"`
	PollID string    `gorm:"column:poll_id;index"`
}

func (Aggregate) TableName() string {
	return "aggregated"
}
