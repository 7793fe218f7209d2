package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-ledger/internal/domain/profile"
)

// Register validates the body and replaces the stored profile.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req profile.RegisterRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "email":
			return decodeText(d, &req.Email)
		case "password":
			return decodeText(d, &req.Password)
		case "name":
			return decodeText(d, &req.Name)
		case "dob":
			return decodeText(d, &req.DOB)
		case "gender":
			return decodeText(d, &req.Gender)
		case "address":
			return decodeText(d, &req.Address)
		case "newsletter":
			return decodeFlag(d, &req.Newsletter)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	p, err := h.profiles.Register(r.Context(), req)
	if err != nil {
		h.profileError(w, r, err)
		return
	}
	writeUser(w, http.StatusCreated, "User registered successfully", p)
}

// GetProfile returns the public view of the stored profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	v, err := h.profiles.View(r.Context())
	if err != nil {
		h.profileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("email", func(e *jx.Encoder) { e.Str(v.Email) })
			e.Field("name", func(e *jx.Encoder) { e.Str(v.Name) })
			e.Field("age", func(e *jx.Encoder) { e.Int(v.Age) })
			e.Field("gender", func(e *jx.Encoder) { e.Str(v.Gender) })
			e.Field("address", func(e *jx.Encoder) { e.Str(v.Address) })
			e.Field("newsletter", func(e *jx.Encoder) { e.Bool(v.Newsletter) })
		})
	})
}

// UpdateProfile applies the provided dob, gender, address and newsletter.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.UpdateRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "dob":
			return decodeText(d, &req.DOB)
		case "gender":
			return decodeText(d, &req.Gender)
		case "address":
			return decodeText(d, &req.Address)
		case "newsletter":
			return decodeFlag(d, &req.Newsletter)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	p, err := h.profiles.Update(r.Context(), req)
	if err != nil {
		h.profileError(w, r, err)
		return
	}
	writeUser(w, http.StatusOK, "Profile updated successfully", p)
}

// DeleteProfile clears the stored profile.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Delete(r.Context()); err != nil {
		h.profileError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User account deleted successfully")
}

// ChangePassword replaces the password after checking the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req profile.ChangePasswordRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "currentPassword":
			return decodeText(d, &req.CurrentPassword)
		case "newPassword":
			return decodeText(d, &req.NewPassword)
		case "confirmPassword":
			return decodeText(d, &req.ConfirmPassword)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.profiles.ChangePassword(r.Context(), req); err != nil {
		h.profileError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// profileError maps domain errors to responses.
func (h *Handler) profileError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *profile.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
	default:
		writeInternal(w, r, err)
	}
}

// decodeFlag records that the field was sent and whether it was a boolean.
func decodeFlag(d *jx.Decoder, dst *profile.Flag) error {
	dst.Set = true
	if d.Next() != jx.Bool {
		dst.Malformed = true
		return d.Skip()
	}
	v, err := d.Bool()
	if err != nil {
		return err
	}
	dst.Value = v
	return nil
}

// writeUser writes a message together with the stored profile. The password
// is never included.
func writeUser(w http.ResponseWriter, status int, msg string, p *profile.Profile) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			e.Field("user", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("email", func(e *jx.Encoder) { e.Str(p.Email) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
					e.Field("dob", func(e *jx.Encoder) { e.Str(p.DOB) })
					e.Field("gender", func(e *jx.Encoder) { e.Str(p.Gender) })
					e.Field("address", func(e *jx.Encoder) { e.Str(p.Address) })
					e.Field("newsletter", func(e *jx.Encoder) { e.Bool(p.Newsletter) })
				})
			})
		})
	})
}
