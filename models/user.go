package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
)

// User is a shop client or an admin (back-office) account.
type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FirstName    string    `gorm:"size:100" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	Phone        string    `gorm:"size:30" json:"phone"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"is_admin"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateUnique[User](ctx, "email", email, 0); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("phone", "invalid phone number")
		}
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		IsAdmin:      input.IsAdmin,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks credentials and returns the user plus a signed JWT.
func Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, "", errors.New("invalid credentials")
	}
	if err := utils.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", errors.New("invalid credentials")
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func GetUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB()
	var users []*User
	err := db.WithContext(ctx).Order("id").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

type UpdateUserInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

func UpdateUser(ctx context.Context, id int, input *UpdateUserInput) (*User, error) {

	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["FirstName"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["LastName"] = *input.LastName
	}
	if input.Phone != nil {
		if *input.Phone != "" {
			if err := utils.ValidatePhoneNumber(*input.Phone, utils.CountryCode); err != nil {
				return nil, utils.NewValidationError("phone", "invalid phone number")
			}
		}
		updates["Phone"] = *input.Phone
	}
	if len(updates) == 0 {
		return user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[User](ctx, id)
}
