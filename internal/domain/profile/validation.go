package profile

import (
	"regexp"
	"slices"
	"strings"
)

// Validation messages, surfaced verbatim to API clients.
const (
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Invalid email format"
	MsgNameRequired     = "Name is required"
	MsgDOBRequired      = "Valid date of birth is required"
	MsgDOBInvalid       = "Invalid date format for dob"
	MsgGenderInvalid    = "Gender must be one of: male, female, other"
	MsgAddressRequired  = "Address is required"
	MsgNewsletterBool   = "Newsletter must be a boolean"
	MsgPasswordsMissing = "All password fields are required"
	MsgPasswordWrong    = "Current password is incorrect"
	MsgPasswordMismatch = "New password and confirmation do not match"
)

// ValidationError carries a client-facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var genders = []string{"male", "female", "other"}

func validGender(g string) bool {
	return slices.Contains(genders, strings.ToLower(g))
}

func validDOB(s string) bool {
	_, err := ParseDOB(s)
	return err == nil
}

// RegisterRequest is the input of Service.Register.
type RegisterRequest struct {
	Email      string
	Password   string
	Name       string
	DOB        string
	Gender     string
	Address    string
	Newsletter Flag
}

// Validate checks fields in a fixed order and reports the first failure.
func (r RegisterRequest) Validate() error {
	switch {
	case r.Email == "":
		return invalid(MsgEmailRequired)
	case !emailPattern.MatchString(r.Email):
		return invalid(MsgEmailInvalid)
	case r.Name == "":
		return invalid(MsgNameRequired)
	case r.DOB == "" || !validDOB(r.DOB):
		return invalid(MsgDOBRequired)
	case r.Gender == "" || !validGender(r.Gender):
		return invalid(MsgGenderInvalid)
	case r.Address == "":
		return invalid(MsgAddressRequired)
	case r.Newsletter.Set && r.Newsletter.Malformed:
		return invalid(MsgNewsletterBool)
	}
	return nil
}

// Profile builds the profile to store. Gender is normalized to lower case and
// an absent newsletter flag means false.
func (r RegisterRequest) Profile() *Profile {
	return &Profile{
		Email:      r.Email,
		Password:   r.Password,
		Name:       r.Name,
		DOB:        r.DOB,
		Gender:     strings.ToLower(r.Gender),
		Address:    r.Address,
		Newsletter: r.Newsletter.Set && r.Newsletter.Value,
	}
}

// UpdateRequest is the input of Service.Update. Empty strings and an unset
// Flag leave the stored value unchanged.
type UpdateRequest struct {
	DOB        string
	Gender     string
	Address    string
	Newsletter Flag
}

// Validate checks the provided fields only.
func (r UpdateRequest) Validate() error {
	switch {
	case r.DOB != "" && !validDOB(r.DOB):
		return invalid(MsgDOBInvalid)
	case r.Gender != "" && !validGender(r.Gender):
		return invalid(MsgGenderInvalid)
	case r.Newsletter.Set && r.Newsletter.Malformed:
		return invalid(MsgNewsletterBool)
	}
	return nil
}

// ChangePasswordRequest is the input of Service.ChangePassword.
type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}
