package dtos

import (
	"github.com/zalachat/zalachat/internal/domains/entities"
)

type UserResponse struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

// UserResponseFromEntity hides contact details unless full is set.
func UserResponseFromEntity(user entities.User, full bool) UserResponse {
	resp := UserResponse{
		Id:       user.Id,
		Username: user.Username,
		Name:     user.DisplayName(),
		Picture:  user.Picture,
	}
	if full {
		resp.Email = user.Email
		resp.Phone = user.Phone
	}
	return resp
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

type ConfirmOtpRequest struct {
	Username string `json:"username" binding:"required"`
	OtpCode  string `json:"otpCode" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username" binding:"required"`
}

type ResetPasswordRequest struct {
	Username    string `json:"username" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type DeviceRegisterRequest struct {
	EndpointArn string `json:"endpointArn" binding:"required"`
	DeviceToken string `json:"deviceToken"`
	Platform    string `json:"platform"`
}
