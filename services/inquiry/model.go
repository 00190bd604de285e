package inquiry

import "time"

type Inquiry struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Email     string    `gorm:"column:email;not null" json:"email"`
	Company   string    `gorm:"column:company" json:"company,omitempty"`
	Message   string    `gorm:"column:message;not null" json:"message"`
}

func (Inquiry) TableName() string { return "contact_inquiries" }

type Request struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Company string `json:"company" binding:"max=200"`
	Message string `json:"message" binding:"required,max=5000"`
}
