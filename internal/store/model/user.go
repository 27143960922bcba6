package model

// User ids come from the external identity domain and are never generated here.
type User struct {
	ID        uint    `gorm:"primaryKey;autoIncrement:false"`
	FirstName *string `gorm:"column:first_name;size:100"`
	LastName  *string `gorm:"column:last_name;size:100"`
	Email     string  `gorm:"size:100"`
}
