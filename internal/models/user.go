package models

import "strings"

// User é o operador humano do CRM; o primeiro nome aparece nas mensagens de
// auditoria geradas pelas transições de follow-up.
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (u *User) FirstName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.Name)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

type UserRepository interface {
	GetByID(id int) (*User, error)
}
